package tele

import (
	"sync"
	"testing"
	"time"

	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

type transportMock struct {
	t              testing.TB
	networkTimeout time.Duration
	outBuffer      int
	outValues      chan []byte
	outStatus      chan []byte

	mu        sync.Mutex
	failFirst int
}

func (self *transportMock) Init(log *log2.Log, teleConfig tele_config.Config) error {
	if self.networkTimeout == 0 {
		self.networkTimeout = defaultNetworkTimeout
	}
	self.outValues = make(chan []byte, self.outBuffer)
	self.outStatus = make(chan []byte, self.outBuffer)
	return nil
}

func (self *transportMock) Close() {}

func (self *transportMock) SendValues(payload []byte) bool {
	self.mu.Lock()
	if self.failFirst > 0 {
		self.failFirst--
		self.mu.Unlock()
		self.t.Logf("mock values send refused=%s", payload)
		return false
	}
	self.mu.Unlock()
	select {
	case self.outValues <- payload:
		self.t.Logf("mock delivered values=%s", payload)
	case <-time.After(self.networkTimeout):
		self.t.Logf("mock network timeout")
		return false
	}
	return true
}

func (self *transportMock) SendStatus(payload []byte) bool {
	select {
	case self.outStatus <- payload:
		self.t.Logf("mock delivered status=%s", payload)
	case <-time.After(self.networkTimeout):
		self.t.Logf("mock network timeout")
		return false
	}
	return true
}
