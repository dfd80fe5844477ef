// ABOUTME: Tests for the watch hub fan-out
// ABOUTME: Covers multiple watchers, slow-watcher drops, and close behavior

package rtdb

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchHub_MultipleWatchersSamePrefix(t *testing.T) {
	h := newWatchHub(testLogger())
	defer h.close()
	ctx := context.Background()

	ch1, cancel1 := h.watch(ctx, "messages/r1")
	ch2, cancel2 := h.watch(ctx, "messages/r1")
	defer cancel1()
	defer cancel2()

	h.publish([]string{"messages/r1/m1/content"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("watcher %d timed out", i)
		}
	}
}

func TestWatchHub_SlowWatcherDropsNotBlocks(t *testing.T) {
	h := newWatchHub(testLogger())
	defer h.close()

	_, cancel := h.watch(context.Background(), "messages/r1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the watcher buffer; publish must never block.
		for i := 0; i < watchBufferSize*3; i++ {
			h.publish([]string{"messages/r1/m1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow watcher")
	}
}

func TestWatchHub_CloseClosesAllChannels(t *testing.T) {
	h := newWatchHub(testLogger())
	ctx := context.Background()

	ch1, _ := h.watch(ctx, "a")
	ch2, _ := h.watch(ctx, "b")

	h.close()

	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)

	// Watches after close come back already closed.
	ch3, cancel := h.watch(ctx, "c")
	defer cancel()
	_, open = <-ch3
	assert.False(t, open)
}

func TestWatchHub_PublishCoalescesPerWatcher(t *testing.T) {
	h := newWatchHub(testLogger())
	defer h.close()

	ch, cancel := h.watch(context.Background(), "messages/r1")
	defer cancel()

	// One publish touching two paths under the prefix yields one event.
	h.publish([]string{"messages/r1/m1/content", "messages/r1/m1/timestamp"})

	<-ch
	select {
	case <-ch:
		t.Fatal("publish delivered more than one event to a watcher")
	case <-time.After(50 * time.Millisecond):
	}
}
