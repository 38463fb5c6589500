package tele

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"

	"github.com/matthijsvisser/kamstrup-402-mqtt/kamstrup"
)

const logMsgDisabled = "tele disabled"

// statusEvent is the wire form of everything on the status topic.
type statusEvent struct {
	Event    string `json:"event"`
	Reason   string `json:"reason,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Message  string `json:"message,omitempty"`
	At       string `json:"at"`
}

// Readings queues one successful poll result for delivery.
func (self *Tele) Readings(rs kamstrup.ReadingSet) {
	if !self.enabled {
		self.log.Infof(logMsgDisabled)
		return
	}
	payload, err := json.Marshal(rs)
	if err != nil {
		self.log.Errorf("CRITICAL readings Marshal rs=%#v err=%v", rs, err)
		return
	}
	if err := self.qpushTag(qValues, payload); err != nil {
		self.log.Errorf("CRITICAL qpush values=%s err=%v", payload, err)
	}
}

// PollFailed queues a status event about one exhausted poll cycle.
func (self *Tele) PollFailed(reason kamstrup.FailReason, attempts int) {
	if !self.enabled {
		self.log.Infof(logMsgDisabled)
		return
	}
	self.pushStatus(statusEvent{Event: "poll_failed", Reason: reason.String(), Attempts: attempts})
}

// Error queues an error report. Suitable for log2 error hook.
func (self *Tele) Error(e error) {
	if e == nil {
		return
	}
	if !self.enabled {
		self.log.Infof(logMsgDisabled)
		return
	}
	self.log.Debugf("tele.Error: " + errors.ErrorStack(e))
	self.pushStatus(statusEvent{Event: "error", Message: e.Error()})
}

func (self *Tele) pushStatus(e statusEvent) {
	e.At = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(e)
	if err != nil {
		self.log.Errorf("CRITICAL status Marshal e=%#v err=%v", e, err)
		return
	}
	if err := self.qpushTag(qStatus, payload); err != nil {
		self.log.Errorf("CRITICAL qpush status=%s err=%v", payload, err)
	}
}
