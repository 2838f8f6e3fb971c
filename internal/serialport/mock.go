package serialport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// TestablePort implements Porter with configurable behaviour for testing.
// It provides fine-grained control over reads, errors, and latency.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// ReadLatency adds a delay to each Read call
	ReadLatency time.Duration

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// BlockReads causes Read to block until data is added or Close is called.
	// When false, an empty buffer returns (0, nil), mimicking a serial read
	// timeout.
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	tp := &TestablePort{
		ReadBuffer: bytes.NewBuffer(nil),
	}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

// Read reads from the read buffer, optionally simulating latency and errors.
func (t *TestablePort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, io.EOF
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.ReadLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.ReadLatency)
		t.mu.Lock()
	}

	if t.ReadBuffer.Len() == 0 {
		if !t.BlockReads {
			// behave like a timed-out serial read
			return 0, nil
		}
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, io.EOF
		}
	}

	return t.ReadBuffer.Read(p)
}

// AddReadData appends data to the read buffer and wakes any blocked readers.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// Close marks the port as closed and wakes any blocked readers.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// SetReadTimeout satisfies TimeoutPorter; the testable port does not enforce
// a real timeout.
func (t *TestablePort) SetReadTimeout(time.Duration) error { return nil }

// FailingOpener returns an Opener that fails a fixed number of times before
// succeeding with the provided port. Used to exercise the reader's open-retry
// path.
func FailingOpener(failures int, port Porter) Opener {
	remaining := failures
	var mu sync.Mutex
	return func() (Porter, error) {
		mu.Lock()
		defer mu.Unlock()
		if remaining > 0 {
			remaining--
			return nil, errors.New("simulated open failure")
		}
		return port, nil
	}
}

// ReplayPort feeds a fixed byte stream, then returns zero-byte reads forever,
// mimicking a radar that stopped transmitting. Used by dev mode.
type ReplayPort struct {
	mu     sync.Mutex
	data   []byte
	pos    int
	loop   bool
	closed bool
}

// NewReplayPort creates a ReplayPort over data. When loop is true the stream
// restarts from the beginning once exhausted.
func NewReplayPort(data []byte, loop bool) *ReplayPort {
	return &ReplayPort{data: data, loop: loop}
}

func (r *ReplayPort) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.EOF
	}
	if r.pos >= len(r.data) {
		if !r.loop || len(r.data) == 0 {
			return 0, nil
		}
		r.pos = 0
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *ReplayPort) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
