package kamstrup

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

const (
	DefaultBaud         = 1200
	DefaultAttempts     = 3
	DefaultReplyTimeout = 2 * time.Second
	DefaultRetryDelay   = 500 * time.Millisecond
)

// ErrStopped reports that a shutdown interrupted the exchange. Not a
// meter failure, callers exit quietly on it.
var ErrStopped = stderrors.New("kamstrup: stopped")

type FailReason byte

const (
	FailNone FailReason = iota
	FailTimeout
	FailProtocol
	FailChannel
)

func (self FailReason) String() string {
	switch self {
	case FailNone:
		return "none"
	case FailTimeout:
		return "timeout"
	case FailProtocol:
		return "protocol"
	case FailChannel:
		return "channel"
	}
	return fmt.Sprintf("FailReason(%d)", byte(self))
}

// SessionError is the terminal outcome of one failed poll cycle.
// Attempts counts exchanges actually performed. Reason FailChannel
// additionally means the uart was closed and will be reopened on the
// next cycle.
type SessionError struct {
	Reason   FailReason
	Attempts int
	Err      error
}

func (self *SessionError) Error() string {
	return fmt.Sprintf("meter %s after %d attempt(s): %v", self.Reason, self.Attempts, self.Err)
}

func (self *SessionError) Timeout() bool { return self.Reason == FailTimeout }
func (self *SessionError) Unwrap() error { return self.Err }

type channelError struct {
	op  string
	err error
}

func (self *channelError) Error() string { return fmt.Sprintf("uart %s: %v", self.op, self.err) }
func (self *channelError) Unwrap() error { return self.err }

type SessionOptions struct {
	Device       string
	Baud         int
	Attempts     int
	ReplyTimeout time.Duration
	RetryDelay   time.Duration
	StrictUnits  bool
}

// Session owns the serial channel and runs request/response exchanges
// against the meter. One exchange at a time, the internal lock only
// guards against a CLI poking the port while the poller runs.
type Session struct {
	log  *log2.Log
	uart Uarter
	opt  SessionOptions
	lk   sync.Mutex
	open bool
}

func NewSession(uart Uarter, opt SessionOptions, log *log2.Log) *Session {
	if opt.Baud == 0 {
		opt.Baud = DefaultBaud
	}
	if opt.Attempts < 1 {
		opt.Attempts = DefaultAttempts
	}
	if opt.ReplyTimeout == 0 {
		opt.ReplyTimeout = DefaultReplyTimeout
	}
	if opt.RetryDelay == 0 {
		opt.RetryDelay = DefaultRetryDelay
	}
	return &Session{log: log, uart: uart, opt: opt}
}

// ReadNamed runs one full poll: all named parameters, split into
// protocol-sized requests, resolved into a ReadingSet. Either every
// parameter is read or an error comes back, there is no partial set.
func (self *Session) ReadNamed(stop <-chan struct{}, names []string) (ReadingSet, error) {
	ids, err := RegistersByName(names)
	if err != nil {
		return nil, err
	}

	self.lk.Lock()
	defer self.lk.Unlock()
	values, err := self.readAll(stop, ids)
	if err != nil {
		return nil, err
	}

	rs, unknown := Resolve(names, values, time.Now())
	for _, uu := range unknown {
		self.log.Errorf("kamstrup: %s", uu.Error())
	}
	if self.opt.StrictUnits && len(unknown) > 0 {
		return nil, &SessionError{Reason: FailProtocol, Attempts: 1, Err: unknown[0]}
	}
	return rs, nil
}

// ReadRegisters reads raw register ids without name resolution.
func (self *Session) ReadRegisters(stop <-chan struct{}, ids []RegisterId) ([]DecodedValue, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.readAll(stop, ids)
}

func (self *Session) readAll(stop <-chan struct{}, ids []RegisterId) ([]DecodedValue, error) {
	all := make([]DecodedValue, 0, len(ids))
	for begin := 0; begin < len(ids); begin += MaxRegistersPerRequest {
		end := begin + MaxRegistersPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		values, err := self.readChunk(stop, ids[begin:end])
		if err != nil {
			return nil, err
		}
		all = append(all, values...)
	}
	return all, nil
}

// readChunk is the retry loop around one request frame. The request is
// built once, retries resend identical bytes. Timeout and decode/parse
// failures burn the retry budget, a channel failure aborts immediately
// and closes the uart for reopen on the next cycle.
func (self *Session) readChunk(stop <-chan struct{}, ids []RegisterId) ([]DecodedValue, error) {
	payload, err := BuildReadRequest(ids)
	if err != nil {
		return nil, err
	}
	wire := EncodeFrame(RequestStart, payload)

	var last error
	for attempt := 1; attempt <= self.opt.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-stop:
				return nil, ErrStopped
			case <-time.After(self.opt.RetryDelay):
			}
		}

		values, err := self.exchange(stop, wire, ids)
		if err == nil {
			return values, nil
		}
		if err == ErrStopped {
			return nil, err
		}
		if ce, ok := err.(*channelError); ok {
			self.closeChannel()
			return nil, &SessionError{Reason: FailChannel, Attempts: attempt, Err: ce}
		}
		last = err
		self.log.Debugf("kamstrup: attempt=%d/%d err=%v", attempt, self.opt.Attempts, err)
	}

	reason := FailProtocol
	if isTimeout(last) {
		reason = FailTimeout
	}
	return nil, &SessionError{Reason: reason, Attempts: self.opt.Attempts, Err: last}
}

// TxRaw frames an arbitrary payload, performs a single exchange and
// returns the decoded response payload. Commissioning tool path.
func (self *Session) TxRaw(stop <-chan struct{}, payload []byte) ([]byte, error) {
	self.lk.Lock()
	defer self.lk.Unlock()

	wire := EncodeFrame(RequestStart, payload)
	raw, err := self.sendRecv(stop, wire)
	if err != nil {
		if ce, ok := err.(*channelError); ok {
			self.closeChannel()
			return nil, &SessionError{Reason: FailChannel, Attempts: 1, Err: ce}
		}
		return nil, err
	}
	return DecodeFrame(ResponseStart, raw)
}

func (self *Session) Close() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if !self.open {
		return nil
	}
	self.open = false
	return self.uart.Close()
}

func (self *Session) exchange(stop <-chan struct{}, wire []byte, ids []RegisterId) ([]DecodedValue, error) {
	raw, err := self.sendRecv(stop, wire)
	if err != nil {
		return nil, err
	}
	payload, err := DecodeFrame(ResponseStart, raw)
	if err != nil {
		return nil, errors.Annotate(err, "decode")
	}
	values, err := ParseReadResponse(payload, ids)
	if err != nil {
		return nil, errors.Annotate(err, "parse")
	}
	return values, nil
}

func (self *Session) sendRecv(stop <-chan struct{}, wire []byte) ([]byte, error) {
	if err := self.ensureOpen(); err != nil {
		return nil, err
	}
	// leftovers of a previous cycle must not leak into this response
	if err := self.uart.ResetRead(); err != nil {
		return nil, &channelError{op: "reset", err: err}
	}
	tbegin := time.Now()
	if err := helpers.WriteAll(self.uart, wire); err != nil {
		return nil, &channelError{op: "write", err: err}
	}
	self.log.Debugf("kamstrup: tx %x", wire)
	raw, err := self.readFrame(stop)
	if err != nil {
		return nil, err
	}
	self.log.Debugf("kamstrup: rx %x t=%s", raw, time.Since(tbegin))
	return raw, nil
}

// readFrame assembles one response frame. Bytes before the start
// marker are line noise or the IR head echoing our request, both are
// skipped. The reply deadline is wall clock from entry, partial input
// at the deadline is discarded.
func (self *Session) readFrame(stop <-chan struct{}) ([]byte, error) {
	deadline := time.Now().Add(self.opt.ReplyTimeout)
	buf := make([]byte, 0, 64)
	started := false
	for {
		select {
		case <-stop:
			return nil, ErrStopped
		default:
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeoutT("kamstrup: response timeout")
		}

		b, err := self.uart.ReadByte()
		if err == ErrNoInput {
			continue
		}
		if err != nil {
			return nil, &channelError{op: "read", err: err}
		}

		if b == ResponseStart {
			buf = buf[:0]
			started = true
		}
		if !started {
			continue
		}
		buf = append(buf, b)
		if b == StopByte {
			return buf, nil
		}
		if len(buf) > MaxFrameLength {
			return nil, errors.Errorf("kamstrup: response over %d bytes", MaxFrameLength)
		}
	}
}

func (self *Session) ensureOpen() error {
	if self.open {
		return nil
	}
	if err := self.uart.Open(self.opt.Device, self.opt.Baud); err != nil {
		return &channelError{op: "open", err: err}
	}
	self.open = true
	return nil
}

func (self *Session) closeChannel() {
	if !self.open {
		return
	}
	self.open = false
	if err := self.uart.Close(); err != nil {
		self.log.Errorf("kamstrup: uart close: %v", err)
	}
}

func isTimeout(err error) bool {
	t, ok := errors.Cause(err).(Timeouter)
	return ok && t.Timeout()
}
