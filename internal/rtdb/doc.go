// Package rtdb provides a path-addressed realtime tree store.
//
// # Overview
//
// The store models a single tree of values addressed by slash-separated
// paths ("chatrooms/u1_u2/lastMessage"). Leaves hold strings, integers, or
// booleans; interior nodes are maps. The package is the persistence
// primitive under the chat and roster layers, which never talk to a
// database directly.
//
// # Writes
//
// All mutation goes through Apply, which takes an Update — a mapping from
// path to new value — and commits every entry as one unit:
//
//	u := rtdb.Update{
//	    "chatrooms/u1_u2/lastMessage":          "hello",
//	    "chatrooms/u1_u2/lastMessageTimestamp": int64(1712345678901),
//	    "userChatrooms/u1/u1_u2":               true,
//	}
//	err := store.Apply(ctx, u)
//
// A nil value deletes the subtree at that path. A map value replaces the
// subtree with the leaves of the map. The call is all-or-nothing: either
// every entry is visible afterwards or none is. No isolation is promised
// across separate Apply calls.
//
// # Reads
//
// Get returns the leaf value at a path, or the subtree as nested
// map[string]any when the path names an interior node, or ErrNotFound.
//
// # Watches
//
// Watch registers interest in a path prefix and returns a channel that
// receives one Event after every Apply touching that prefix, plus a cancel
// function. Events carry no payload beyond the watched prefix; watchers
// re-read the tree to see the new state. Slow watchers have events dropped
// rather than blocking writers.
//
// # Implementations
//
// MemoryStore keeps the tree in process memory and is suitable for tests
// and single-process deployments. SQLiteStore persists leaves in a SQLite
// database and commits each Apply in one transaction.
package rtdb
