// ABOUTME: In-memory Store implementation backed by a flat leaf map
// ABOUTME: Suitable for tests and single-process deployments

package rtdb

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryStore keeps the tree in process memory. Apply is atomic under the
// store mutex; watchers are notified after the mutation is visible.
type MemoryStore struct {
	mu     sync.RWMutex
	leaves map[string]any // leaf path -> scalar value
	keys   *keyGenerator
	hub    *watchHub
}

// NewMemoryStore creates an empty in-memory store. Pass nil logger for the
// default.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		leaves: make(map[string]any),
		keys:   newKeyGenerator(),
		hub:    newWatchHub(logger),
	}
}

// Get returns the leaf value at path or the assembled subtree below it.
func (s *MemoryStore) Get(ctx context.Context, path string) (any, error) {
	if _, err := splitPath(path); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.leaves[path]; ok {
		return v, nil
	}
	found := false
	sub := make(map[string]any)
	for p, v := range s.leaves {
		if isUnder(p, path) {
			sub[p] = v
			found = true
		}
	}
	if !found {
		return nil, ErrNotFound
	}
	return assemble(path, sub), nil
}

// Apply commits all entries under one lock acquisition and then notifies
// watchers once.
func (s *MemoryStore) Apply(ctx context.Context, u Update) error {
	if len(u) == 0 {
		return nil
	}
	writes, err := flatten(u)
	if err != nil {
		return err
	}

	s.mu.Lock()
	// Deletions first: a subtree replacement flattens to a deletion marker
	// plus the new leaves, and the marker must not clobber them.
	for path, value := range writes {
		if value != nil {
			continue
		}
		delete(s.leaves, path)
		for p := range s.leaves {
			if isUnder(p, path) {
				delete(s.leaves, p)
			}
		}
	}
	for path, value := range writes {
		if value != nil {
			s.leaves[path] = value
		}
	}
	s.mu.Unlock()

	paths := make([]string, 0, len(writes))
	for p := range writes {
		paths = append(paths, p)
	}
	s.hub.publish(paths)
	return nil
}

// PushKey returns a fresh time-ordered child key.
func (s *MemoryStore) PushKey() string {
	return s.keys.next()
}

// Watch registers for change events under prefix.
func (s *MemoryStore) Watch(ctx context.Context, prefix string) (<-chan Event, func()) {
	return s.hub.watch(ctx, prefix)
}

// Close tears down all watchers.
func (s *MemoryStore) Close() error {
	s.hub.close()
	return nil
}
