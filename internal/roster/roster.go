// ABOUTME: Conversation roster: aggregates a user's rooms into summaries
// ABOUTME: Concurrent per-room fetch with partial-failure isolation

package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wachichaw/allychat/internal/chat"
	"github.com/wachichaw/allychat/internal/identity"
)

// ErrDirectoryUnavailable is returned when the user's own conversation
// index cannot be listed. Per-room failures are never fatal; this one is.
var ErrDirectoryUnavailable = errors.New("conversation directory unavailable")

// maxConcurrentFetches bounds the per-room metadata and identity lookups
// issued in parallel for one roster call.
const maxConcurrentFetches = 8

// ChatReader is what the roster needs from the chat layer.
type ChatReader interface {
	Rooms(ctx context.Context, userID string) ([]string, error)
	Room(ctx context.Context, roomKey string) (*chat.Room, error)
}

// Summary describes one conversation for a list view.
type Summary struct {
	OtherUserID          string `json:"otherUserId"`
	DisplayName          string `json:"displayName"`
	Role                 string `json:"role"`
	RoomKey              string `json:"roomKey"`
	LastMessage          string `json:"lastMessage"`
	LastMessageTimestamp int64  `json:"lastMessageTimestamp"`
	IsRead               bool   `json:"isRead"`
}

// Service builds conversation rosters. It only reads; all writes happen in
// the chat layer.
type Service struct {
	chats    ChatReader
	resolver identity.Resolver
	logger   *slog.Logger
}

// New creates a roster service. Pass nil logger for the default.
func New(chats ChatReader, resolver identity.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chats:    chats,
		resolver: resolver,
		logger:   logger.With("component", "roster"),
	}
}

// ActiveConversations lists userID's conversations, most recent first.
// Rooms that vanished, are malformed, or whose counterpart cannot be
// resolved are dropped and logged; they never fail the whole call. Only a
// failure to list the user's own index is fatal.
func (s *Service) ActiveConversations(ctx context.Context, userID string) ([]Summary, error) {
	roomKeys, err := s.chats.Rooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if len(roomKeys) == 0 {
		return []Summary{}, nil
	}

	// Per-room fetches are independent; a slow or failing room must not
	// block or invalidate the others. Workers record into their own slot,
	// nil meaning dropped.
	results := make([]*Summary, len(roomKeys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, roomKey := range roomKeys {
		i, roomKey := i, roomKey
		g.Go(func() error {
			results[i] = s.buildSummary(gctx, userID, roomKey)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	summaries := make([]Summary, 0, len(results))
	for _, r := range results {
		if r != nil {
			summaries = append(summaries, *r)
		}
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTimestamp > summaries[j].LastMessageTimestamp
	})
	return summaries, nil
}

// buildSummary assembles one room's summary, or nil if the room should be
// dropped from the roster.
func (s *Service) buildSummary(ctx context.Context, userID, roomKey string) *Summary {
	room, err := s.chats.Room(ctx, roomKey)
	if err != nil {
		s.logger.Warn("dropping room from roster",
			"room_key", roomKey, "user_id", userID, "error", err)
		return nil
	}

	otherID, ok := room.Other(userID)
	if !ok {
		s.logger.Warn("dropping malformed room with no counterpart",
			"room_key", roomKey, "user_id", userID)
		return nil
	}

	other, err := s.resolver.Resolve(ctx, otherID)
	if err != nil {
		s.logger.Warn("dropping room with unresolvable counterpart",
			"room_key", roomKey, "other_user_id", otherID, "error", err)
		return nil
	}

	return &Summary{
		OtherUserID:          other.ID,
		DisplayName:          other.DisplayName,
		Role:                 other.AccountType,
		RoomKey:              roomKey,
		LastMessage:          room.LastMessage,
		LastMessageTimestamp: room.LastMessageTimestamp,
		IsRead:               room.IsRead(userID),
	}
}
