// ABOUTME: Chat service: send/edit/delete messages, read markers, listings
// ABOUTME: Every mutation is one atomic fan-out Apply against the tree store

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/wachichaw/allychat/internal/rtdb"
)

// Service is the messaging core. All room state lives in the tree store;
// the service owns the layout and the fan-out write sets.
type Service struct {
	store  rtdb.Store
	logger *slog.Logger

	// now returns the current time in Unix milliseconds. Overridden in
	// tests for deterministic timestamps.
	now func() int64
}

// NewService creates the chat service. Pass nil logger for the default.
func NewService(store rtdb.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "chat"),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// SendResult identifies a freshly appended message.
type SendResult struct {
	RoomKey   string `json:"roomKey"`
	MessageID string `json:"messageId"`
}

// SendMessage appends a message to the pair's room in one atomic write that
// also refreshes room metadata, both participants' index entries, and the
// sender's read marker. It returns after the store acknowledges the write.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content, senderRole string) (SendResult, error) {
	roomKey, err := RoomKey(senderID, receiverID)
	if err != nil {
		return SendResult{}, err
	}

	ts := s.now()
	messageID := s.store.PushKey()
	msgPath := messagePath(roomKey, messageID)

	room := roomPath(roomKey)

	u := rtdb.Update{}
	u[msgPath+"/senderId"] = senderID
	u[msgPath+"/receiverId"] = receiverID
	u[msgPath+"/content"] = content
	u[msgPath+"/timestamp"] = ts
	u[msgPath+"/isEdited"] = false
	u[msgPath+"/senderRole"] = senderRole

	u[room+"/lastMessage"] = content
	u[room+"/lastMessageTimestamp"] = ts
	u[room+"/participants/"+senderID] = true
	u[room+"/participants/"+receiverID] = true

	// The sender has read their own message as of the send timestamp. The
	// receiver's details stay untouched until they send or mark read
	// themselves.
	u[room+"/participantDetails/"+senderID] = map[string]any{
		"role":     senderRole,
		"lastRead": ts,
	}

	u[userRoomsPath(senderID)+"/"+roomKey] = true
	u[userRoomsPath(receiverID)+"/"+roomKey] = true

	if err := s.store.Apply(ctx, u); err != nil {
		return SendResult{}, fmt.Errorf("sending message to room %s: %w", roomKey, err)
	}

	s.logger.Debug("message sent",
		"room_key", roomKey,
		"message_id", messageID,
		"sender_id", senderID)

	return SendResult{RoomKey: roomKey, MessageID: messageID}, nil
}

// Messages returns the room's full history ordered by ascending timestamp,
// ties broken by message key. A room with no messages yields an empty
// slice, not an error. Malformed nodes are skipped and logged.
func (s *Service) Messages(ctx context.Context, roomKey string) ([]Message, error) {
	raw, err := s.store.Get(ctx, messagesPath(roomKey))
	if errors.Is(err, rtdb.ErrNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing messages for room %s: %w", roomKey, err)
	}

	tree, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("listing messages for room %s: unexpected node shape", roomKey)
	}

	messages := make([]Message, 0, len(tree))
	for id, rawMsg := range tree {
		m, err := decodeMessage(id, rawMsg)
		if err != nil {
			s.logger.Warn("skipping malformed message node",
				"room_key", roomKey, "error", err)
			continue
		}
		messages = append(messages, m)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// EditMessage rewrites a message's content in place, marking it edited.
// Returns ErrMessageNotFound if the message no longer exists.
func (s *Service) EditMessage(ctx context.Context, roomKey, messageID, newContent string) error {
	path := messagePath(roomKey, messageID)

	if _, err := s.store.Get(ctx, path); err != nil {
		if errors.Is(err, rtdb.ErrNotFound) {
			return fmt.Errorf("editing message %s in room %s: %w", messageID, roomKey, ErrMessageNotFound)
		}
		return fmt.Errorf("editing message %s in room %s: %w", messageID, roomKey, err)
	}

	u := rtdb.Update{
		path + "/content":  newContent,
		path + "/isEdited": true,
		path + "/editedAt": s.now(),
	}
	if err := s.store.Apply(ctx, u); err != nil {
		return fmt.Errorf("editing message %s in room %s: %w", messageID, roomKey, err)
	}
	return nil
}

// DeleteMessage removes a message. Deleting an already-absent message is a
// no-op, tolerating concurrent deletes.
func (s *Service) DeleteMessage(ctx context.Context, roomKey, messageID string) error {
	u := rtdb.Update{messagePath(roomKey, messageID): nil}
	if err := s.store.Apply(ctx, u); err != nil {
		return fmt.Errorf("deleting message %s in room %s: %w", messageID, roomKey, err)
	}
	return nil
}

// MarkRead records that userID has read the room through now. A blind
// overwrite of the caller's own marker: concurrent marks by the same user
// converge to the latest time.
func (s *Service) MarkRead(ctx context.Context, roomKey, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty participant id", ErrInvalidParticipant)
	}
	u := rtdb.Update{
		roomPath(roomKey) + "/participantDetails/" + userID + "/lastRead": s.now(),
	}
	if err := s.store.Apply(ctx, u); err != nil {
		return fmt.Errorf("marking room %s read for %s: %w", roomKey, userID, err)
	}
	return nil
}

// Rooms lists the room keys userID participates in, from the userChatrooms
// index. A user with no conversations yields an empty slice.
func (s *Service) Rooms(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.store.Get(ctx, userRoomsPath(userID))
	if errors.Is(err, rtdb.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing rooms for %s: %w", userID, err)
	}

	tree, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("listing rooms for %s: unexpected node shape", userID)
	}
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Room fetches a room's metadata. Returns ErrRoomNotFound if the room does
// not exist.
func (s *Service) Room(ctx context.Context, roomKey string) (*Room, error) {
	raw, err := s.store.Get(ctx, roomPath(roomKey))
	if errors.Is(err, rtdb.ErrNotFound) {
		return nil, fmt.Errorf("room %s: %w", roomKey, ErrRoomNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching room %s: %w", roomKey, err)
	}
	return decodeRoom(roomKey, raw)
}
