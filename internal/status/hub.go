package status

import (
	"fmt"
	"log/slog"
	"sync"
)

// Hub fans playback events out to connected SSE clients. Sends never
// block: a subscriber whose buffer is full loses the event, because the
// playback loop's cadence matters more than a slow browser.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a new client and returns its event channel.
// The channel is closed by Unsubscribe or by Close.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	slog.Info("status: sse client connected", "total", len(h.subs))
	return ch
}

// Unsubscribe removes a client and closes its channel. Safe to call
// for channels the hub no longer tracks.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
	slog.Info("status: sse client disconnected", "total", len(h.subs))
}

// Broadcast delivers a named SSE event to every subscriber.
func (h *Hub) Broadcast(event string, data []byte) {
	msg := fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data)
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			slog.Warn("status: sse client buffer full, dropping message")
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every client; later Subscribe calls get a closed
// channel. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
