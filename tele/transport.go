package tele

import (
	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

// Tele transport contract:
// - Init fails only with invalid config, ignores network errors
// - Send* deliver within timeout or fail; false means try again later
// - hide "connection" concept from upstream API; broker may be down at start
// - assume worst network quality: loss, reorder, duplicates
type Transporter interface {
	Init(log *log2.Log, teleConfig tele_config.Config) error
	SendValues(payload []byte) bool
	SendStatus(payload []byte) bool
	Close()
}
