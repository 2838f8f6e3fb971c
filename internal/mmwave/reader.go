package mmwave

import (
	"fmt"
	"time"

	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/serialport"
)

// readLoop owns the serial link. It maintains the stream invariant that every
// byte appended to the fill buffer belongs to a frame whose leading magic
// word has already been consumed.
func (h *Handler) readLoop() {
	defer h.wg.Done()

	port, err := h.openPort()
	if err != nil {
		monitoring.Logf("mmwave read: %v", err)
		h.fatal(err)
		return
	}
	defer port.Close()
	monitoring.Logf("mmwave read: data port open")

	var window [8]byte
	one := make([]byte, 1)

	// Initial resync: consume bytes into the sliding window until the magic
	// word appears. The matched bytes are discarded, not buffered.
	for h.running.Load() && !isMagicWord(window) {
		h.nextByte(port, one, &window)
	}

	h.fillMu.Lock()
	fill := h.fillBuf
	firstFrame := true

	for h.running.Load() {
		b, ok := h.nextByte(port, one, &window)
		if !ok {
			continue
		}
		fill.data = append(fill.data, b)

		if !isMagicWord(window) {
			continue
		}

		// The frame just completed is the buffer contents minus the
		// trailing magic word of the next frame; the sorter's length
		// check accounts for the extra 8 bytes.
		monitoring.FramesFramed.Inc()
		h.fillMu.Unlock()

		// On the very first boundary the sorter has not consumed a frame
		// yet and will not signal, so the reader covers its barrier slot.
		increments := 1
		if firstFrame {
			increments = 2
			firstFrame = false
		}
		h.signalAndAwaitSwap(h.readGo, increments)

		h.fillMu.Lock()
		fill = h.fillBuf
		fill.data = fill.data[:0]
		window = [8]byte{}
	}
	h.fillMu.Unlock()
}

// nextByte reads a single byte, shifting it into the sliding window. A read
// timeout or transient error yields ok=false and the caller simply retries.
func (h *Handler) nextByte(port serialport.Porter, buf []byte, window *[8]byte) (byte, bool) {
	n, err := port.Read(buf[:1])
	if err != nil || n == 0 {
		// Timeouts surface as zero-byte reads. A permanently broken link
		// looks the same; garbage frames are discarded downstream by the
		// totalPacketLen check.
		time.Sleep(time.Millisecond)
		return 0, false
	}
	monitoring.SerialBytesRead.Inc()
	copy(window[:7], window[1:])
	window[7] = buf[0]
	return buf[0], true
}

// openPort opens the data port, retrying once after openRetryDelay.
func (h *Handler) openPort() (serialport.Porter, error) {
	port, err := h.open()
	if err == nil {
		return port, nil
	}
	monitoring.Logf("mmwave read: failed to open data port: %v; retrying in %s", err, h.openRetryDelay)

	select {
	case <-time.After(h.openRetryDelay):
	case <-h.stopc:
		return nil, fmt.Errorf("open data port: %w", err)
	}

	port, err = h.open()
	if err != nil {
		return nil, fmt.Errorf("open data port after retry: %w", err)
	}
	return port, nil
}
