// ABOUTME: Watch hub fanning out change events to prefix subscribers
// ABOUTME: Shared by MemoryStore and SQLiteStore; non-blocking delivery

package rtdb

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// watchBufferSize is the channel buffer for each watcher. A watcher that
// falls further behind than this has events dropped; since watchers re-read
// the tree on every event, a dropped event is only a missed wakeup that the
// next write repairs.
const watchBufferSize = 16

type watcher struct {
	prefix string
	ch     chan Event
}

// watchHub tracks prefix watchers and publishes change events to them.
type watchHub struct {
	mu       sync.RWMutex
	watchers map[string]*watcher // watch ID -> watcher
	closed   bool
	logger   *slog.Logger
}

func newWatchHub(logger *slog.Logger) *watchHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &watchHub{
		watchers: make(map[string]*watcher),
		logger:   logger.With("component", "rtdb.watch"),
	}
}

// watch registers a watcher for the prefix. The returned cancel function is
// idempotent and safe to call concurrently; the watch is also removed when
// ctx is cancelled.
func (h *watchHub) watch(ctx context.Context, prefix string) (<-chan Event, func()) {
	id := uuid.New().String()
	w := &watcher{prefix: prefix, ch: make(chan Event, watchBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(w.ch)
		return w.ch, func() {}
	}
	h.watchers[id] = w
	h.mu.Unlock()

	h.logger.Debug("watch added", "prefix", prefix, "watch_id", id)

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.remove(id) })
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return w.ch, cancel
}

// publish notifies every watcher whose prefix overlaps one of the written
// paths. Each watcher receives at most one event per publish call.
func (h *watchHub) publish(paths []string) {
	// Sends happen under the read lock so a concurrent remove (which takes
	// the write lock before closing the channel) cannot race them. Sends
	// are non-blocking, so the lock is never held for long.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, w := range h.watchers {
		hit := false
		for _, p := range paths {
			if touches(p, w.prefix) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		select {
		case w.ch <- Event{Prefix: w.prefix}:
		default:
			// Watcher buffer full; the next write will wake it again.
			h.logger.Debug("dropped event for slow watcher", "prefix", w.prefix)
		}
	}
}

func (h *watchHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.watchers[id]
	if !ok {
		return
	}
	delete(h.watchers, id)
	close(w.ch)

	h.logger.Debug("watch removed", "prefix", w.prefix, "watch_id", id)
}

// close tears down all watchers and rejects future registrations.
func (h *watchHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, w := range h.watchers {
		close(w.ch)
		delete(h.watchers, id)
	}
}
