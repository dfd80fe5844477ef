// ABOUTME: Store interface and value model for the path-addressed tree store
// ABOUTME: Defines Update (atomic fan-out write), Event, and path validation

package rtdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when no value exists at the path.
var ErrNotFound = errors.New("path not found")

// ErrInvalidPath is returned when a path is empty or contains empty segments.
var ErrInvalidPath = errors.New("invalid path")

// ErrInvalidValue is returned when an Update entry holds an unsupported type.
var ErrInvalidValue = errors.New("invalid value type")

// Update is a fan-out write: a mapping from path to new value, committed as
// one unit. Supported values are string, int64, bool, a map[string]any of
// the same (replacing the subtree), or nil (deleting the subtree).
type Update map[string]any

// Event notifies a watcher that something under its prefix changed.
type Event struct {
	// Prefix is the watched prefix, not the exact path written.
	Prefix string
}

// Store is the tree-store primitive consumed by the chat and roster layers.
type Store interface {
	// Get returns the value at path: a leaf value, or map[string]any for an
	// interior node. Returns ErrNotFound if nothing exists there.
	Get(ctx context.Context, path string) (any, error)

	// Apply commits every entry of the update atomically. Either all
	// entries are visible after the call or none is.
	Apply(ctx context.Context, u Update) error

	// PushKey returns a new child key. Keys sort lexicographically in
	// generation order, so store-assigned keys double as a stable
	// tie-breaker for equal timestamps.
	PushKey() string

	// Watch registers for change events under prefix. The returned cancel
	// function is idempotent; after it returns the channel is closed and no
	// further events are delivered. The watch is also torn down when ctx
	// is cancelled.
	Watch(ctx context.Context, prefix string) (<-chan Event, func())

	// Close releases the store's resources.
	Close() error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// splitPath validates and splits a path into segments.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// flatten expands an Update into leaf writes and subtree deletions.
// Each returned entry is either a scalar leaf value or nil (delete).
func flatten(u Update) (map[string]any, error) {
	leaves := make(map[string]any, len(u))
	for path, value := range u {
		if _, err := splitPath(path); err != nil {
			return nil, err
		}
		if err := flattenValue(path, value, leaves); err != nil {
			return nil, err
		}
	}
	return leaves, nil
}

func flattenValue(path string, value any, out map[string]any) error {
	switch v := value.(type) {
	case nil:
		out[path] = nil
	case string, int64, bool:
		out[path] = v
	case int:
		out[path] = int64(v)
	case map[string]any:
		// Replacing a subtree: delete what was there, then write leaves.
		out[path] = nil
		for key, child := range v {
			if key == "" || strings.Contains(key, "/") {
				return fmt.Errorf("%w: map key %q", ErrInvalidPath, key)
			}
			childPath := path + "/" + key
			if err := flattenValue(childPath, child, out); err != nil {
				return err
			}
			// A nested empty map would leave only the deletion marker;
			// that is fine — an empty subtree does not exist.
		}
	default:
		return fmt.Errorf("%w: %T at %q", ErrInvalidValue, value, path)
	}
	return nil
}

// isUnder reports whether path lies at or below prefix, segment-wise.
func isUnder(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// touches reports whether a write at path affects a watcher of prefix.
// True when either is an ancestor of the other: writing
// "messages/r1/m1/content" changes what a watcher of "messages/r1" sees,
// and deleting "messages" changes what a watcher of "messages/r1" sees.
func touches(path, prefix string) bool {
	return isUnder(path, prefix) || isUnder(prefix, path)
}

// assemble builds a nested map from flat leaf paths relative to a prefix.
// The leaves map must contain at least one entry under the prefix.
func assemble(prefix string, leaves map[string]any) any {
	if v, ok := leaves[prefix]; ok {
		return v
	}
	root := make(map[string]any)
	// Deterministic iteration keeps nothing semantic but makes debugging
	// output stable.
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		if isUnder(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	for _, p := range paths {
		rel := strings.TrimPrefix(p, prefix+"/")
		segments := strings.Split(rel, "/")
		node := root
		for _, s := range segments[:len(segments)-1] {
			child, ok := node[s].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[s] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = leaves[p]
	}
	return root
}
