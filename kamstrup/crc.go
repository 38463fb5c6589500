package kamstrup

// KMP frames carry the "true" CCITT CRC-16 (aka XMODEM): polynomial
// 0x1021, zero initial value, no reflection, no final xor. The checksum
// is computed over the unstuffed body and appended big endian, so a
// receiver running the same algorithm over body+checksum gets zero.

const crcPoly = 0x1021

func Crc16(bs []byte) uint16 {
	var reg uint16
	for _, b := range bs {
		reg ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if reg&0x8000 != 0 {
				reg = reg<<1 ^ crcPoly
			} else {
				reg <<= 1
			}
		}
	}
	return reg
}
