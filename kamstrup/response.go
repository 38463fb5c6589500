package kamstrup

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/juju/errors"
)

// ErrResponseHeader means the payload does not open with the expected
// destination/CID echo.
var ErrResponseHeader = stderrors.New("kamstrup: unexpected response header")

// ErrTruncatedRecord means the payload ended inside a value record.
var ErrTruncatedRecord = stderrors.New("kamstrup: truncated value record")

type CountMismatch struct {
	Want int
	Got  int
}

func (self CountMismatch) Error() string {
	return fmt.Sprintf("kamstrup: response has %d records, requested %d", self.Got, self.Want)
}

type OrderMismatch struct {
	Index int
	Want  RegisterId
	Got   RegisterId
}

func (self OrderMismatch) Error() string {
	return fmt.Sprintf("kamstrup: record %d is register %s, requested %s", self.Index, self.Got, self.Want)
}

type UnknownUnit struct {
	Register RegisterId
	Code     byte
}

func (self UnknownUnit) Error() string {
	return fmt.Sprintf("kamstrup: register %s reports unknown unit code %d", self.Register, self.Code)
}

// DecodedValue is one meter register in native scaled form. The
// physical value is Mantissa times ten to Exponent, unit given by
// UnitCode. Sign of the value lives in Mantissa.
type DecodedValue struct {
	Register RegisterId
	Mantissa int64
	Exponent int8
	UnitCode byte
}

// Value resolves the scaled integer into a float. Negative exponents
// divide rather than multiply by a negative power so decimal fixtures
// like 227445e-3 come out exactly as strconv would parse 227.445.
func (self DecodedValue) Value() float64 {
	m := float64(self.Mantissa)
	if self.Exponent >= 0 {
		return m * math.Pow10(int(self.Exponent))
	}
	return m / math.Pow10(-int(self.Exponent))
}

func (self DecodedValue) Unit() (string, bool) {
	return UnitString(self.UnitCode)
}

// ParseReadResponse walks a GetRegister response payload and validates
// it against the requested register list: records are fixed-header with
// a variable length mantissa, their count and order must match the
// request exactly. Partial responses are an error, never a partial
// result.
func ParseReadResponse(payload []byte, requested []RegisterId) ([]DecodedValue, error) {
	if len(payload) < 2 || payload[0] != AddrHeatMeter || payload[1] != CidGetRegister {
		return nil, ErrResponseHeader
	}

	rest := payload[2:]
	values := make([]DecodedValue, 0, len(requested))
	for len(rest) > 0 {
		if len(rest) < 5 {
			return nil, ErrTruncatedRecord
		}
		id := RegisterId(rest[0])<<8 | RegisterId(rest[1])
		unit := rest[2]
		n := int(rest[3])
		sigexp := rest[4]
		rest = rest[5:]
		if n > 8 {
			return nil, errors.Errorf("kamstrup: register %s mantissa length %d", id, n)
		}
		if len(rest) < n {
			return nil, ErrTruncatedRecord
		}

		var m uint64
		for _, b := range rest[:n] {
			m = m<<8 | uint64(b)
		}
		rest = rest[n:]
		if m > math.MaxInt64 {
			return nil, errors.Errorf("kamstrup: register %s mantissa overflow", id)
		}
		mantissa := int64(m)
		if sigexp&0x80 != 0 {
			mantissa = -mantissa
		}
		exponent := int8(sigexp & 0x3f)
		if sigexp&0x40 != 0 {
			exponent = -exponent
		}

		values = append(values, DecodedValue{
			Register: id,
			Mantissa: mantissa,
			Exponent: exponent,
			UnitCode: unit,
		})
	}

	if len(values) != len(requested) {
		return nil, CountMismatch{Want: len(requested), Got: len(values)}
	}
	for i, want := range requested {
		if values[i].Register != want {
			return nil, OrderMismatch{Index: i, Want: want, Got: values[i].Register}
		}
	}
	return values, nil
}
