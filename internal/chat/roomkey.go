// ABOUTME: Canonical room key derivation from two participant identifiers
// ABOUTME: Symmetric and deterministic; rejects empty ids and self-chat

package chat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParticipant is returned for empty participant identifiers and
// for self-chat (both identifiers naming the same user).
var ErrInvalidParticipant = errors.New("invalid participant")

// roomKeyDelimiter joins the two participant ids. Identifiers are assumed
// not to contain it.
const roomKeyDelimiter = "_"

// RoomKey derives the canonical room key for a pair of participants.
// Symmetric: RoomKey(a, b) == RoomKey(b, a). Identifiers are lowercased and
// sorted, so the same two users always share one room.
func RoomKey(a, b string) (string, error) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: empty participant id", ErrInvalidParticipant)
	}
	if a == b {
		return "", fmt.Errorf("%w: self-chat (%q)", ErrInvalidParticipant, a)
	}
	if a > b {
		a, b = b, a
	}
	return a + roomKeyDelimiter + b, nil
}
