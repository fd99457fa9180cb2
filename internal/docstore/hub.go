package docstore

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Notifier propagates collection change signals to other processes that
// share the same backing store.
type Notifier interface {
	Notify(ctx context.Context, collection string) error
}

// Hub fans change signals out to in-process watchers keyed by collection
// path. Signals carry no payload: watchers re-run their query.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
	notifier Notifier
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

// SetNotifier installs n; Publish forwards every local change to it.
func (h *Hub) SetNotifier(n Notifier) {
	h.mu.Lock()
	h.notifier = n
	h.mu.Unlock()
}

// Watch registers interest in collection. The returned channel receives at
// most one pending signal; repeated changes coalesce. stop unregisters.
func (h *Hub) Watch(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.watchers[collection]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.watchers[collection] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[collection], ch)
			if len(h.watchers[collection]) == 0 {
				delete(h.watchers, collection)
			}
			h.mu.Unlock()
		})
	}
}

// Publish signals local watchers and forwards to the notifier, if any.
// Notifier failures only cost remote freshness and are logged.
func (h *Hub) Publish(ctx context.Context, collection string) {
	h.Broadcast(collection)

	h.mu.Lock()
	n := h.notifier
	h.mu.Unlock()
	if n == nil {
		return
	}
	if err := n.Notify(ctx, collection); err != nil {
		log.Warn().Err(err).Str("collection", collection).Msg("change notify failed")
	}
}

// Broadcast signals local watchers only. Notifiers call it for changes
// received from other processes.
func (h *Hub) Broadcast(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watching reports the number of active watchers on collection.
func (h *Hub) Watching(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[collection])
}
