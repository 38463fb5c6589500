package kamstrup

import (
	"errors"
)

var (
	ErrNoRegisters      = errors.New("kamstrup: request needs at least one register")
	ErrTooManyRegisters = errors.New("kamstrup: too many registers for one request")
)

// BuildReadRequest produces the GetRegister payload: destination, CID,
// register count, then each id big endian. The response reports values
// in exactly this order, callers rely on that to name them.
func BuildReadRequest(ids []RegisterId) ([]byte, error) {
	if len(ids) == 0 {
		return nil, ErrNoRegisters
	}
	if len(ids) > MaxRegistersPerRequest {
		return nil, ErrTooManyRegisters
	}
	payload := make([]byte, 0, 3+2*len(ids))
	payload = append(payload, AddrHeatMeter, CidGetRegister, byte(len(ids)))
	for _, id := range ids {
		payload = append(payload, id.Hi(), id.Lo())
	}
	return payload, nil
}
