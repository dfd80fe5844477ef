// ABOUTME: Tests for the SQLite-backed tree store
// ABOUTME: Covers schema creation, round-trips, transactional apply, underscores in keys

package rtdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	s, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "tree.db")

	s, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	err := s.Apply(ctx, Update{
		"chatrooms/r1/lastMessage":          "hello",
		"chatrooms/r1/lastMessageTimestamp": int64(123),
		"chatrooms/r1/participants/u1":      true,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	v, err := s.Get(ctx, "chatrooms/r1/lastMessage")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "hello" {
		t.Errorf("lastMessage = %v, want hello", v)
	}

	v, err = s.Get(ctx, "chatrooms/r1/lastMessageTimestamp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != int64(123) {
		t.Errorf("lastMessageTimestamp = %v, want 123", v)
	}

	v, err = s.Get(ctx, "chatrooms/r1/participants/u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != true {
		t.Errorf("participants/u1 = %v, want true", v)
	}
}

func TestSQLiteStore_SubtreeGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	err := s.Apply(ctx, Update{
		"messages/r1/m1/content": "A",
		"messages/r1/m2/content": "B",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	v, err := s.Get(ctx, "messages/r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	tree, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Get returned %T, want map", v)
	}
	if len(tree) != 2 {
		t.Errorf("subtree has %d children, want 2", len(tree))
	}
}

func TestSQLiteStore_UnderscoreKeysDoNotWildcard(t *testing.T) {
	// Room keys contain underscores, which are LIKE metacharacters.
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	err := s.Apply(ctx, Update{
		"messages/u1_u2/m1/content": "A",
		"messages/u1xu2/m2/content": "B", // would match u1_u2 via unescaped LIKE
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	v, err := s.Get(ctx, "messages/u1_u2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	tree := v.(map[string]any)
	if len(tree) != 1 {
		t.Errorf("subtree of u1_u2 has %d children, want 1", len(tree))
	}
	if _, ok := tree["m2"]; ok {
		t.Error("u1xu2 message leaked into u1_u2 subtree")
	}
}

func TestSQLiteStore_DeleteSubtree(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	err := s.Apply(ctx, Update{
		"messages/r1/m1/content": "A",
		"messages/r1/m2/content": "B",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if err := s.Apply(ctx, Update{"messages/r1/m1": nil}); err != nil {
		t.Fatalf("delete Apply failed: %v", err)
	}

	if _, err := s.Get(ctx, "messages/r1/m1"); err != ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "messages/r1/m2/content"); err != nil {
		t.Errorf("sibling should survive delete, got %v", err)
	}
}

func TestSQLiteStore_InvalidUpdateWritesNothing(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	err := s.Apply(ctx, Update{
		"a/b": "fine",
		"a/c": struct{}{}, // unsupported type rejects the whole update
	})
	if err == nil {
		t.Fatal("Apply should have failed")
	}

	if _, err := s.Get(ctx, "a/b"); err != ErrNotFound {
		t.Errorf("partial write visible after failed Apply: %v", err)
	}
}

func TestSQLiteStore_Watch(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	ch, cancel := s.Watch(ctx, "messages/r1")
	defer cancel()

	if err := s.Apply(ctx, Update{"messages/r1/m1/content": "A"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Prefix != "messages/r1" {
			t.Errorf("event prefix = %q, want messages/r1", ev.Prefix)
		}
	default:
		t.Fatal("no event delivered after Apply")
	}
}
