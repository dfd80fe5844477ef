// ABOUTME: Map-backed Resolver for tests and single-binary deployments
// ABOUTME: Missing users resolve to ErrNotFound like the real directory

package identity

import (
	"context"
	"fmt"
	"sync"
)

// StaticResolver serves a fixed set of users from memory.
type StaticResolver struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStaticResolver creates a resolver over the given users.
func NewStaticResolver(users []User) *StaticResolver {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &StaticResolver{users: m}
}

// Resolve returns the user or ErrNotFound.
func (r *StaticResolver) Resolve(ctx context.Context, userID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	out := u
	return &out, nil
}

// Add registers or replaces a user.
func (r *StaticResolver) Add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}
