package serialport

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestablePortReads(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.AddReadData([]byte{1, 2, 3})

	buf := make([]byte, 2)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2}, buf[:2])

	// An empty buffer mimics a serial read timeout.
	n, err = port.Read(make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTestablePortBlockReads(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.BlockReads = true

	got := make(chan byte, 1)
	go func() {
		buf := make([]byte, 1)
		if n, err := port.Read(buf); err == nil && n == 1 {
			got <- buf[0]
		}
	}()

	time.Sleep(20 * time.Millisecond)
	port.AddReadData([]byte{0x42})

	select {
	case b := <-got:
		assert.Equal(t, byte(0x42), b)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked read never observed the added data")
	}
}

func TestTestablePortClose(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	require.NoError(t, port.Close())

	_, err := port.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayPort(t *testing.T) {
	t.Parallel()

	t.Run("exhausts then times out", func(t *testing.T) {
		port := NewReplayPort([]byte{1, 2}, false)
		buf := make([]byte, 4)
		n, err := port.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = port.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("loops", func(t *testing.T) {
		port := NewReplayPort([]byte{1, 2}, true)
		buf := make([]byte, 2)
		for i := 0; i < 3; i++ {
			n, err := port.Read(buf)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, []byte{1, 2}, buf)
		}
	})
}

func TestFailingOpener(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	open := FailingOpener(2, port)

	_, err := open()
	assert.Error(t, err)
	_, err = open()
	assert.Error(t, err)

	got, err := open()
	require.NoError(t, err)
	assert.Same(t, port, got)
}
