package realtime

import (
	"sync"
	"time"

	"paradero/internal/paradero"
)

// Update is one published state of the collection. Event is nil for full
// refreshes.
type Update struct {
	Event *paradero.ChangeEvent
	Stops []paradero.Stop
	At    time.Time
}

// Sink consumes published updates. Publish must not block for long.
type Sink interface {
	Publish(Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

func (f SinkFunc) Publish(u Update) { f(u) }

// Dispatcher pushes every update to the registered sinks, in registration
// order.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewDispatcher creates a dispatcher with optional initial sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Register adds a sink.
func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Publish delivers u to every sink.
func (d *Dispatcher) Publish(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		s.Publish(u)
	}
}

// Hub fans updates out to SSE connections. Each client holds at most one
// pending update; a slow client skips straight to the newest one.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Update]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Update]struct{})}
}

// Subscribe registers a client. The returned function unregisters it.
func (h *Hub) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
		})
	}
}

// Publish implements Sink.
func (h *Hub) Publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- u:
			continue
		default:
		}
		// Replace the stale pending update.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
