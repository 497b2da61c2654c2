// Package serialmux provides the sector source used when reading an AX3
// device live over its CDC serial interface instead of from a .CWA file.
// A device in streaming mode emits the same 512-byte sectors the file
// format stores, so the decoder consumes either source through io.Reader.
package serialmux

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
