package kamstrup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
)

func TestCrc16KnownVectors(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint16(0x0000), Crc16(nil))
	// CRC-16/XMODEM check value
	assert.Equal(t, uint16(0x31c3), Crc16([]byte("123456789")))
	// GetRegister request for the energy register
	assert.Equal(t, uint16(0xb25f), Crc16(helpers.MustHex("3f1001003c")))
	// hourcounter, the only register above 0xff
	assert.Equal(t, uint16(0x2c71), Crc16(helpers.MustHex("3f100103ec")))
}

func TestCrc16Residue(t *testing.T) {
	t.Parallel()
	payloads := [][]byte{
		{},
		{0x00},
		helpers.MustHex("3f1001003c"),
		helpers.MustHex("3f10003c08044300037875"),
		{0x06, 0x0d, 0x1b, 0x40, 0x80},
	}
	for _, p := range payloads {
		crc := Crc16(p)
		body := append(append([]byte(nil), p...), byte(crc>>8), byte(crc))
		assert.Equal(t, uint16(0), Crc16(body), "payload=%x", p)
	}
}

func TestCrc16BitSensitivity(t *testing.T) {
	t.Parallel()
	body := helpers.MustHex("3f10003c080443000378752bad")
	assert.Equal(t, uint16(0), Crc16(body))
	for i := range body {
		for bit := 0; bit < 8; bit++ {
			mut := append([]byte(nil), body...)
			mut[i] ^= 1 << bit
			assert.NotEqual(t, uint16(0), Crc16(mut), "flip byte=%d bit=%d", i, bit)
		}
	}
}
