// ABOUTME: Resolver interface and user model for the identity directory
// ABOUTME: Normalized shape consumed by the roster; adapters live alongside

package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the directory has no user with that id.
var ErrNotFound = errors.New("user not found")

// ErrUnavailable is returned when the directory cannot be reached or
// answers with a server error.
var ErrUnavailable = errors.New("identity directory unavailable")

// User is the normalized identity shape. Whatever spelling the directory
// uses for names, callers only ever see DisplayName.
type User struct {
	ID          string
	DisplayName string
	AccountType string
}

// Resolver looks up a user's display identity.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*User, error)
}
