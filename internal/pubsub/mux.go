// Package pubsub distributes emitted point clouds: an in-process fan-out mux
// for subscribers inside the process, and sinks that carry clouds to external
// transports.
package pubsub

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/pointcloud"
)

// DefaultQueueDepth is the per-subscriber channel buffer.
const DefaultQueueDepth = 100

// CloudMux fans emitted clouds out to any number of subscriber channels. It
// implements the pipeline's Publisher interface. Publishing never blocks: a
// subscriber whose queue is full misses that cloud.
type CloudMux struct {
	mu          sync.Mutex
	subscribers map[string]chan *pointcloud.Cloud
	queueDepth  int
	closing     bool
}

// NewCloudMux creates a mux with the default per-subscriber queue depth.
func NewCloudMux() *CloudMux {
	return &CloudMux{
		subscribers: make(map[string]chan *pointcloud.Cloud),
		queueDepth:  DefaultQueueDepth,
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a new channel for receiving clouds. The returned ID
// identifies the channel when unsubscribing.
func (m *CloudMux) Subscribe() (string, <-chan *pointcloud.Cloud) {
	id := randomID()
	ch := make(chan *pointcloud.Cloud, m.queueDepth)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *CloudMux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Publish delivers the cloud to every subscriber that has queue space.
func (m *CloudMux) Publish(c *pointcloud.Cloud) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}
	for id, ch := range m.subscribers {
		select {
		case ch <- c:
		default:
			monitoring.Logf("pubsub: subscriber %s queue full, dropping frame %d", id, c.FrameNumber)
		}
	}
}

// Close closes every subscriber channel. Further publishes are ignored.
func (m *CloudMux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
}
