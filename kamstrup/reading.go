package kamstrup

import (
	"bytes"
	"strconv"
	"time"
)

// Reading is one resolved physical value.
type Reading struct {
	Parameter string
	Value     float64
	Unit      string
	At        time.Time
}

// ReadingSet is the outcome of one successful poll, one Reading per
// requested parameter in request order. Built once, never mutated.
type ReadingSet []Reading

func (self ReadingSet) Get(name string) (Reading, bool) {
	for _, r := range self {
		if r.Parameter == name {
			return r, true
		}
	}
	return Reading{}, false
}

// MarshalJSON renders {"energy":227.445,...} preserving request order.
// Downstream consumers key on parameter names, units travel on the
// meter bus only as register metadata.
func (self ReadingSet) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 16+16*len(self)))
	buf.WriteByte('{')
	for i, r := range self {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(r.Parameter))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(r.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Resolve pairs parsed values with their requested parameter names and
// stamps them. Unit codes outside the protocol table come back in the
// second return, the reading itself keeps an empty unit then, policy on
// that is the caller's.
func Resolve(names []string, values []DecodedValue, at time.Time) (ReadingSet, []UnknownUnit) {
	if len(names) != len(values) {
		panic("code error kamstrup.Resolve names/values length mismatch")
	}
	rs := make(ReadingSet, 0, len(values))
	var unknown []UnknownUnit
	for i, v := range values {
		unit, ok := v.Unit()
		if !ok {
			unknown = append(unknown, UnknownUnit{Register: v.Register, Code: v.UnitCode})
		}
		rs = append(rs, Reading{
			Parameter: names[i],
			Value:     v.Value(),
			Unit:      unit,
			At:        at,
		})
	}
	return rs, unknown
}
