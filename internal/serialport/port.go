// Package serialport abstracts the radar data UART behind a small interface so
// the framing pipeline and its tests never touch real hardware directly.
package serialport

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for the data serial port.
// This abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.Reader
	io.Closer
}

// TimeoutPorter extends Porter with a read timeout. The framing pipeline sets
// a short timeout so a stalled link surfaces as zero-byte reads rather than a
// blocked goroutine.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}

// Opener is a function type for opening the data port. The handler takes an
// Opener rather than a Porter so the open-retry policy lives with the reader
// and dev mode can substitute a replay port.
type Opener func() (Porter, error)
