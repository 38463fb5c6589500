// Package kamstrup talks to Kamstrup Multical heat meters over an
// infrared serial head.
//
// The meter speaks the Kamstrup KMP protocol: half duplex, 1200 baud,
// 8 data bits, no parity, 2 stop bits. One exchange is a framed request
// (read these registers) answered by a framed response carrying scaled
// integer values with unit and exponent metadata. Frames are delimited
// by start/stop markers, reserved bytes inside the body are escaped and
// a CRC-16 guards the payload.
package kamstrup

// Reserved wire bytes. Any of these occurring inside a frame body is
// sent as EscapeByte followed by the value XOR 0xFF.
const (
	AckByte       byte = 0x06
	StopByte      byte = 0x0D
	EscapeByte    byte = 0x1B
	ResponseStart byte = 0x40
	RequestStart  byte = 0x80
)

const (
	// Destination address of the heat meter application layer.
	AddrHeatMeter byte = 0x3F
	// CID of the "read registers" command.
	CidGetRegister byte = 0x10
)

// MaxRegistersPerRequest caps one GetRegister exchange. The meter
// firmware rejects longer requests, larger reads must be split.
const MaxRegistersPerRequest = 8

// MaxFrameLength bounds response assembly against line noise. A full
// 8-register response stays well under this even fully escaped.
const MaxFrameLength = 512

func mustEscape(b byte) bool {
	switch b {
	case AckByte, StopByte, EscapeByte, ResponseStart, RequestStart:
		return true
	}
	return false
}
