// Package mmwave implements the framing-and-parsing pipeline for the TI
// mmWave data UART: a double-buffered producer/consumer in which a byte
// reader and a frame sorter alternate ownership of two buffers through a
// three-party barrier.
//
// Three goroutines are spawned by Start():
//  1. readLoop — owns the serial link, resynchronizes on the magic word and
//     fills the current fill buffer one frame at a time.
//  2. sortLoop — drives the TLV state machine over the drain buffer and
//     publishes one point cloud per frame of detected objects.
//  3. swapLoop — waits until both workers have signalled, then exchanges the
//     fill and drain buffer roles and releases them.
package mmwave

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/annzb/mmwave/internal/pointcloud"
	"github.com/annzb/mmwave/internal/serialport"
)

// countSyncMax is the barrier threshold: one signal from the reader, one from
// the sorter.
const countSyncMax = 2

// defaultOpenRetryDelay is how long the reader waits before its single retry
// of a failed port open.
const defaultOpenRetryDelay = 20 * time.Second

// Publisher receives one cloud per frame of detected objects. Ownership of
// the cloud passes to the publisher.
type Publisher interface {
	Publish(*pointcloud.Cloud)
}

// frameBuffer holds one in-flight frame: the payload bytes that follow a
// consumed magic word, plus the trailing magic word of the next frame.
type frameBuffer struct {
	data []byte
}

// Handler owns the pipeline. Construct with NewHandler, then Start; Stop (or
// the fatal path) ends all three goroutines, and Wait joins them.
type Handler struct {
	cfg  *RadarConfig
	pub  Publisher
	open serialport.Opener

	openRetryDelay time.Duration
	onFatal        func(error)

	running atomic.Bool
	stopc   chan struct{}

	// mu is the counter lock: it guards countSync and swapGen and anchors
	// the three conditions. Lock order is mu, then fillMu, then drainMu.
	mu        sync.Mutex
	countSync int
	swapGen   uint64
	barrier   *sync.Cond // swapLoop waits here for countSync == countSyncMax
	readGo    *sync.Cond // readLoop resumes here after a swap
	sortGo    *sync.Cond // sortLoop resumes here after a swap

	// fillMu and drainMu protect whichever buffer currently holds the
	// corresponding role. The role pointers themselves only change inside
	// swapLoop while both locks are held and both workers are parked.
	fillMu   sync.Mutex
	drainMu  sync.Mutex
	fillBuf  *frameBuffer
	drainBuf *frameBuffer

	wg sync.WaitGroup
}

// NewHandler creates a pipeline over the given port opener, publishing
// detected-object clouds to pub.
func NewHandler(cfg *RadarConfig, pub Publisher, open serialport.Opener) *Handler {
	h := &Handler{
		cfg:            cfg,
		pub:            pub,
		open:           open,
		openRetryDelay: defaultOpenRetryDelay,
		stopc:          make(chan struct{}),
		fillBuf:        &frameBuffer{},
		drainBuf:       &frameBuffer{},
	}
	h.barrier = sync.NewCond(&h.mu)
	h.readGo = sync.NewCond(&h.mu)
	h.sortGo = sync.NewCond(&h.mu)
	return h
}

// SetOpenRetryDelay overrides the wait before the single port-open retry.
func (h *Handler) SetOpenRetryDelay(d time.Duration) {
	h.openRetryDelay = d
}

// SetFatalHandler installs a callback invoked when the reader gives up on the
// serial port. The surrounding process uses it to request shutdown.
func (h *Handler) SetFatalHandler(f func(error)) {
	h.onFatal = f
}

// Start spawns the reader, sorter and swap goroutines.
func (h *Handler) Start() {
	h.running.Store(true)
	h.wg.Add(3)
	go h.readLoop()
	go h.sortLoop()
	go h.swapLoop()
}

// Stop requests shutdown: loop predicates become false and every parked
// goroutine is woken to observe them. Safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.running.Swap(false) {
		close(h.stopc)
	}
	h.barrier.Broadcast()
	h.readGo.Broadcast()
	h.sortGo.Broadcast()
	h.mu.Unlock()
}

// Wait blocks until all three goroutines have exited.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// fatal reports an unrecoverable error and requests shutdown.
func (h *Handler) fatal(err error) {
	if h.onFatal != nil {
		h.onFatal(err)
	}
	h.Stop()
}

// swapLoop is the barrier: once countSync reaches countSyncMax both workers
// are parked on their resume conditions and neither buffer lock is held, so
// the roles can be exchanged without racing either worker.
func (h *Handler) swapLoop() {
	defer h.wg.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for h.running.Load() {
		for h.countSync < countSyncMax && h.running.Load() {
			h.barrier.Wait()
		}
		if !h.running.Load() {
			return
		}

		h.fillMu.Lock()
		h.drainMu.Lock()
		h.fillBuf, h.drainBuf = h.drainBuf, h.fillBuf
		h.drainMu.Unlock()
		h.fillMu.Unlock()

		h.countSync = 0
		h.swapGen++
		h.sortGo.Broadcast()
		h.readGo.Broadcast()
	}
}

// signalAndAwaitSwap adds increments to the barrier counter and parks the
// caller on cond until the next swap (or shutdown). The reader passes 2 on
// the very first frame boundary, covering the sorter's slot before it has a
// frame to drain. Callers must not hold any buffer lock.
func (h *Handler) signalAndAwaitSwap(cond *sync.Cond, increments int) {
	h.mu.Lock()
	h.countSync += increments
	if h.countSync == countSyncMax {
		h.barrier.Signal()
	}
	gen := h.swapGen
	for h.swapGen == gen && h.running.Load() {
		cond.Wait()
	}
	h.mu.Unlock()
}
