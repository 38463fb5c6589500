package kamstrup

// Public API to easy create meter stubs to test your code.

import (
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
)

// MockExchange scripts one request/response on a MockUart. RequestHex
// set means the written wire frame must match it exactly. ReplyHex is
// queued for reading after the write, empty ReplyHex models a silent
// meter.
type MockExchange struct {
	RequestHex string
	ReplyHex   string
}

// Mock Uarter for tests. Each write consumes the next scripted
// exchange, reads drain the queued reply and report ErrNoInput when
// empty, so session timeout paths behave like a quiet serial line.
type MockUart struct {
	t      testing.TB
	mu     sync.Mutex
	script []MockExchange
	writes [][]byte
	rbuf   []byte
	opened bool

	OpenErr  error
	WriteErr error
	ReadErr  error
}

func NewMockUart(t testing.TB, script ...MockExchange) *MockUart {
	return &MockUart{t: t, script: script}
}

func (self *MockUart) Open(path string, baud int) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.OpenErr != nil {
		return self.OpenErr
	}
	self.opened = true
	return nil
}

func (self *MockUart) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.opened = false
	return nil
}

func (self *MockUart) ResetRead() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.rbuf = nil
	return nil
}

func (self *MockUart) Write(p []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.WriteErr != nil {
		return 0, self.WriteErr
	}
	if !self.opened {
		return 0, errors.New("mock uart: write before open")
	}
	frame := append([]byte(nil), p...)
	self.writes = append(self.writes, frame)
	if len(self.script) > 0 {
		x := self.script[0]
		self.script = self.script[1:]
		if x.RequestHex != "" && x.RequestHex != hex.EncodeToString(frame) {
			self.t.Errorf("mock uart: request=%x expected=%s", frame, x.RequestHex)
		}
		if x.ReplyHex != "" {
			self.rbuf = append(self.rbuf, helpers.MustHex(x.ReplyHex)...)
		}
	}
	return len(p), nil
}

func (self *MockUart) ReadByte() (byte, error) {
	self.mu.Lock()
	if self.ReadErr != nil {
		err := self.ReadErr
		self.mu.Unlock()
		return 0, err
	}
	if len(self.rbuf) > 0 {
		b := self.rbuf[0]
		self.rbuf = self.rbuf[1:]
		self.mu.Unlock()
		return b, nil
	}
	self.mu.Unlock()
	time.Sleep(1 * time.Millisecond)
	return 0, ErrNoInput
}

// Writes returns every frame written so far, attempt counting in tests
// keys on this.
func (self *MockUart) Writes() [][]byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([][]byte(nil), self.writes...)
}
