package tele

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/spq"

	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

const defaultNetworkTimeout = 30 * time.Second

// Tele contract:
// - Init() fails only with invalid config, network issues ignored
// - Readings/PollFailed/Error public API calls block at most for disk write
//   network may be slow or absent, messages will be delivered in background
// - Close() stops delivery, yet undelivered messages survive restart on disk
// - values and status messages delivered at least once
type Tele struct { //nolint:maligned
	enabled       bool
	log           *log2.Log
	transport     Transporter
	q             *spq.Queue
	stopCh        chan struct{}
	retryInterval time.Duration
}

func New() *Tele { return &Tele{} }

// test code injects transport
func NewWithTransporter(trans Transporter) *Tele { return &Tele{transport: trans} }

func (self *Tele) Init(log *log2.Log, teleConfig tele_config.Config) error {
	self.enabled = teleConfig.Enabled
	self.log = log.Clone(log2.LInfo)
	if teleConfig.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.enabled {
		return nil
	}

	self.stopCh = make(chan struct{})
	if self.retryInterval == 0 {
		self.retryInterval = sendRetryInterval
	}

	if teleConfig.PersistPath == "" {
		panic("code error must set teleConfig.PersistPath")
	}
	var err error
	self.q, err = spq.Open(teleConfig.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}

	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(log, teleConfig); err != nil {
		return errors.Annotate(err, "tele transport")
	}

	go self.qworker()
	return nil
}

func (self *Tele) Close() {
	if !self.enabled {
		return
	}
	close(self.stopCh)
	self.q.Close()
	self.transport.Close()
}

// denote value type in persistent queue bytes form
const (
	qValues byte = 1
	qStatus byte = 2
)

// failed sends wait this long before the message returns to the queue
const sendRetryInterval = 17 * time.Second

func (self *Tele) qworker() {
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			// success path
			b := box.Bytes()
			var del bool
			del, err = self.qhandle(b)
			if err != nil {
				self.log.Errorf("tele qhandle b=%x err=%v", b, err)
			}
			if del {
				if err = self.q.Delete(box); err != nil {
					self.log.Errorf("tele qhandle Delete b=%x err=%v", b, err)
				}
			} else {
				select {
				case <-self.stopCh:
					return
				case <-time.After(self.retryInterval):
				}
				if err = self.q.DeletePush(box); err != nil {
					self.log.Errorf("tele qhandle DeletePush b=%x err=%v", b, err)
				}
			}

		case spq.ErrClosed:
			select {
			case <-self.stopCh: // success path
			default:
				self.log.Errorf("CRITICAL tele spq closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele spq err=%v", err)
			// remaining spq errors are disk full and friends, no
			// handling for those yet
		}
	}
}

func (self *Tele) qhandle(b []byte) (bool, error) {
	if len(b) == 0 {
		self.log.Errorf("tele spq peek=empty")
		// what else can we do?
		return true, nil
	}

	switch b[0] {
	case qValues:
		return self.transport.SendValues(b[1:]), nil

	case qStatus:
		return self.transport.SendStatus(b[1:]), nil

	default:
		return true, errors.Errorf("unknown kind=%d", b[0])
	}
}

func (self *Tele) qpushTag(tag byte, payload []byte) error {
	b := make([]byte, 0, 1+len(payload))
	b = append(b, tag)
	b = append(b, payload...)
	return self.q.Push(b)
}
