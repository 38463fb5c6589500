package kamstrup

import (
	"time"

	"github.com/juju/errors"
	"go.bug.st/serial"

	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

const defaultReadGranularity = 100 * time.Millisecond

// serialUart drives a real IR head through go.bug.st/serial. The meter
// link is fixed at 8 data bits, no parity, two stop bits, only the baud
// rate is caller supplied.
type serialUart struct {
	log         *log2.Log
	port        serial.Port
	granularity time.Duration
}

func NewSerialUart(log *log2.Log) *serialUart {
	return &serialUart{
		log:         log,
		granularity: defaultReadGranularity,
	}
}

func (self *serialUart) Open(path string, baud int) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return errors.Annotatef(err, "uart open %s", path)
	}
	if err = port.SetReadTimeout(self.granularity); err != nil {
		port.Close()
		return errors.Annotatef(err, "uart %s set read timeout", path)
	}
	self.port = port
	self.log.Debugf("uart open %s baud=%d 8N2", path, baud)
	return nil
}

func (self *serialUart) Close() error {
	if self.port == nil {
		return nil
	}
	err := self.port.Close()
	self.port = nil
	return err
}

func (self *serialUart) ResetRead() error {
	return self.port.ResetInputBuffer()
}

func (self *serialUart) ReadByte() (byte, error) {
	var b [1]byte
	n, err := self.port.Read(b[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// library reports read timeout as empty read
		return 0, ErrNoInput
	}
	return b[0], nil
}

func (self *serialUart) Write(p []byte) (int, error) {
	return self.port.Write(p)
}
