package kamstrup

type ErrTimeoutT string

type Timeouter interface {
	Timeout() bool
}

func (e ErrTimeoutT) Error() string { return string(e) }
func (ErrTimeoutT) Timeout() bool   { return true }

// ErrNoInput is the per-read granularity timeout: nothing arrived
// within one read slice. The session keeps waiting until its own reply
// deadline, so this by itself is not a failure.
const ErrNoInput = ErrTimeoutT("kamstrup: uart no input")

// Uarter is the serial channel under the session. ReadByte blocks at
// most for the implementation's short granularity and returns
// ErrNoInput when idle, which keeps response waits promptly
// interruptible. Write may be short, callers use helpers.WriteAll.
type Uarter interface {
	Open(path string, baud int) error
	ResetRead() error
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
	Close() error
}
