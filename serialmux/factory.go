package serialmux

import (
	"go.bug.st/serial"
)

// OpenSectorPort opens the AX3's CDC ACM interface at the given path. The
// line settings are nominal; a CDC link ignores the baud rate.
func OpenSectorPort(path string) (SerialPorter, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	return serial.Open(path, mode)
}
