// ABOUTME: Live message stream: snapshot-per-change subscription on a room
// ABOUTME: Cancel is an idempotent, synchronous teardown barrier

package chat

import (
	"context"
	"sync"
)

// Snapshot is the full ordered state of a room's messages at one point in
// time. Consumers replace their view wholesale; they never reconcile
// partial updates.
type Snapshot struct {
	RoomKey  string    `json:"roomKey"`
	Messages []Message `json:"messages"`
}

// SnapshotHandler receives ordered snapshots. It is called from the
// subscription's own goroutine, one call at a time.
type SnapshotHandler func(Snapshot)

// ErrorHandler receives transient store errors from the subscription loop.
// The loop keeps running after reporting one.
type ErrorHandler func(error)

// Subscription is a live watch on one room's messages. Cancel tears it
// down; once Cancel returns, no further handler invocation occurs, even
// for a change notification already in flight.
type Subscription struct {
	// mu serializes handler invocations against Cancel. Handlers run with
	// mu held, which is what makes Cancel a barrier — so Cancel must not
	// be called from inside a handler.
	mu        sync.Mutex
	cancelled bool

	cancelWatch func()
	done        chan struct{}
}

// Subscribe opens a live stream on the pair's room. The snapshot handler
// receives the current ordered history immediately, then a fresh snapshot
// after every change to the room's messages. Store errors inside the loop
// go to errHandler (may be nil) and never terminate the stream.
func (s *Service) Subscribe(ctx context.Context, senderID, receiverID string, onSnapshot SnapshotHandler, onError ErrorHandler) (*Subscription, error) {
	roomKey, err := RoomKey(senderID, receiverID)
	if err != nil {
		return nil, err
	}

	events, cancelWatch := s.store.Watch(ctx, messagesPath(roomKey))
	sub := &Subscription{
		cancelWatch: cancelWatch,
		done:        make(chan struct{}),
	}

	logger := s.logger.With("room_key", roomKey)

	go func() {
		defer close(sub.done)

		// Initial snapshot, then one per change event. The watch channel
		// closes on cancel, ending the loop.
		sub.deliver(ctx, s, roomKey, onSnapshot, onError)
		for range events {
			sub.deliver(ctx, s, roomKey, onSnapshot, onError)
		}
		logger.Debug("message stream closed")
	}()

	logger.Debug("message stream opened")
	return sub, nil
}

// Cancel tears down the subscription. Idempotent and safe to call
// concurrently; when it returns, no handler is running and none will run
// again.
func (sub *Subscription) Cancel() {
	sub.mu.Lock()
	sub.cancelled = true
	sub.mu.Unlock()
	sub.cancelWatch()
}

// Done is closed when the subscription's delivery loop has exited.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

func (sub *Subscription) deliver(ctx context.Context, svc *Service, roomKey string, onSnapshot SnapshotHandler, onError ErrorHandler) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return
	}

	messages, err := svc.Messages(ctx, roomKey)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	onSnapshot(Snapshot{RoomKey: roomKey, Messages: messages})
}
