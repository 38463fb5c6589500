package tele

import (
	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/kamstrup"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

// Teler is the telemetry client, meter side. Not for external public usage.
type Teler interface {
	Init(log *log2.Log, teleConfig tele_config.Config) error
	Close()
	Readings(kamstrup.ReadingSet)
	PollFailed(reason kamstrup.FailReason, attempts int)
	Error(error)
}

var _ Teler = &Tele{} // compile-time interface test

type stub struct{}

func (stub) Init(*log2.Log, tele_config.Config) error { return nil }
func (stub) Close()                                   {}
func (stub) Readings(kamstrup.ReadingSet)             {}
func (stub) PollFailed(kamstrup.FailReason, int)      {}
func (stub) Error(error)                              {}

func NewStub() Teler { return stub{} }
