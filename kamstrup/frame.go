package kamstrup

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing errors. Checksum failures carry both values for diagnostics.
var (
	ErrFrameMalformed = errors.New("kamstrup: malformed frame")
	ErrFrameTruncated = errors.New("kamstrup: truncated frame")
)

type InvalidChecksum struct {
	Received uint16
	Computed uint16
}

func (self InvalidChecksum) Error() string {
	return fmt.Sprintf("kamstrup: frame checksum received=%04x computed=%04x", self.Received, self.Computed)
}

// EncodeFrame wraps payload into one wire frame: start marker, byte
// stuffed body, CRC-16 big endian, stop marker. The start marker
// depends on direction, RequestStart towards the meter, ResponseStart
// from it. The marker itself is never stuffed and not covered by the
// checksum. Any payload encodes successfully.
func EncodeFrame(start byte, payload []byte) []byte {
	crc := Crc16(payload)
	body := make([]byte, 0, len(payload)+2)
	body = append(body, payload...)
	body = append(body, byte(crc>>8), byte(crc))

	wire := make([]byte, 0, len(body)+2+4)
	wire = append(wire, start)
	for _, b := range body {
		if mustEscape(b) {
			wire = append(wire, EscapeByte, b^0xff)
		} else {
			wire = append(wire, b)
		}
	}
	wire = append(wire, StopByte)
	return wire
}

// DecodeFrame reverses EncodeFrame: checks the delimiters, unstuffs the
// body, validates the checksum and returns the payload without CRC.
// An escaped byte that decodes outside the reserved set is tolerated,
// the meter is the authority on what it escapes.
func DecodeFrame(start byte, wire []byte) ([]byte, error) {
	if len(wire) < 2 || wire[0] != start {
		return nil, ErrFrameMalformed
	}
	if wire[len(wire)-1] != StopByte {
		return nil, ErrFrameTruncated
	}

	stuffed := wire[1 : len(wire)-1]
	body := make([]byte, 0, len(stuffed))
	for i := 0; i < len(stuffed); i++ {
		switch stuffed[i] {
		case EscapeByte:
			if i+1 >= len(stuffed) {
				return nil, ErrFrameTruncated
			}
			i++
			body = append(body, stuffed[i]^0xff)
		case start, StopByte:
			// reserved bytes must arrive escaped
			return nil, ErrFrameMalformed
		default:
			body = append(body, stuffed[i])
		}
	}

	if len(body) < 2 {
		return nil, ErrFrameTruncated
	}
	if Crc16(body) != 0 {
		payload := body[:len(body)-2]
		return nil, InvalidChecksum{
			Received: binary.BigEndian.Uint16(body[len(body)-2:]),
			Computed: Crc16(payload),
		}
	}
	return body[:len(body)-2], nil
}
