package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Open opens a real serial port at the given path with the provided options
// and read timeout applied.
func Open(path string, opts PortOptions, readTimeout time.Duration) (TimeoutPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	return port, nil
}

// RealOpener returns an Opener bound to a device path, options and timeout.
func RealOpener(path string, opts PortOptions, readTimeout time.Duration) Opener {
	return func() (Porter, error) {
		return Open(path, opts, readTimeout)
	}
}
