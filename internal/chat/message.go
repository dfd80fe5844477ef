// ABOUTME: Message and Room models plus tree-path layout and decoding
// ABOUTME: Paths mirror the persisted userChatrooms/chatrooms/messages layout

package chat

import (
	"errors"
	"fmt"

	"github.com/wachichaw/allychat/internal/rtdb"
)

// ErrMessageNotFound is returned when an edit targets a message that no
// longer exists (for example, concurrently deleted).
var ErrMessageNotFound = errors.New("message not found")

// ErrRoomNotFound is returned when a room's metadata does not exist.
var ErrRoomNotFound = errors.New("room not found")

// Tree roots of the persisted layout. The shape is fixed for compatibility
// with existing data:
//
//	userChatrooms/{userId}/{roomKey}                         = true
//	chatrooms/{roomKey}/participants/{userId}                = true
//	chatrooms/{roomKey}/lastMessage                          = string
//	chatrooms/{roomKey}/lastMessageTimestamp                 = int64
//	chatrooms/{roomKey}/participantDetails/{userId}/role     = string
//	chatrooms/{roomKey}/participantDetails/{userId}/lastRead = int64
//	messages/{roomKey}/{messageId}/...
const (
	userChatroomsRoot = "userChatrooms"
	chatroomsRoot     = "chatrooms"
	messagesRoot      = "messages"
)

func messagesPath(roomKey string) string {
	return rtdb.Join(messagesRoot, roomKey)
}

func messagePath(roomKey, messageID string) string {
	return rtdb.Join(messagesRoot, roomKey, messageID)
}

func roomPath(roomKey string) string {
	return rtdb.Join(chatroomsRoot, roomKey)
}

func userRoomsPath(userID string) string {
	return rtdb.Join(userChatroomsRoot, userID)
}

// Message is one entry in a room's history. Timestamps are Unix
// milliseconds. EditedAt is zero for never-edited messages.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	IsEdited   bool   `json:"isEdited"`
	EditedAt   int64  `json:"editedAt,omitempty"`
	SenderRole string `json:"senderRole"`
}

// Participant holds one user's per-room details.
type Participant struct {
	Role     string
	LastRead int64
}

// Room is a conversation's metadata node.
type Room struct {
	Key                  string
	Participants         []string
	LastMessage          string
	LastMessageTimestamp int64
	Details              map[string]Participant
}

// Other returns the participant that is not userID, or false for a
// malformed room where no such participant exists.
func (r *Room) Other(userID string) (string, bool) {
	for _, p := range r.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}

// IsRead reports whether userID has read through the room's latest message.
// A missing read marker counts as unread once the room has any message.
func (r *Room) IsRead(userID string) bool {
	d, ok := r.Details[userID]
	if !ok {
		return r.LastMessageTimestamp == 0
	}
	return d.LastRead >= r.LastMessageTimestamp
}

// decodeMessage converts one raw message node into a Message. Messages
// written by any compatible client decode losslessly; nodes missing the
// required fields are rejected.
func decodeMessage(id string, raw any) (Message, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("message %s: not an object", id)
	}
	m := Message{ID: id}
	if m.SenderID, ok = node["senderId"].(string); !ok {
		return Message{}, fmt.Errorf("message %s: missing senderId", id)
	}
	if m.ReceiverID, ok = node["receiverId"].(string); !ok {
		return Message{}, fmt.Errorf("message %s: missing receiverId", id)
	}
	if m.Content, ok = node["content"].(string); !ok {
		return Message{}, fmt.Errorf("message %s: missing content", id)
	}
	if m.Timestamp, ok = node["timestamp"].(int64); !ok {
		return Message{}, fmt.Errorf("message %s: missing timestamp", id)
	}
	// Optional fields: absent on messages written before edits existed.
	m.IsEdited, _ = node["isEdited"].(bool)
	m.EditedAt, _ = node["editedAt"].(int64)
	m.SenderRole, _ = node["senderRole"].(string)
	return m, nil
}

// decodeRoom converts a chatrooms node into a Room.
func decodeRoom(key string, raw any) (*Room, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("room %s: not an object", key)
	}
	r := &Room{Key: key, Details: make(map[string]Participant)}
	r.LastMessage, _ = node["lastMessage"].(string)
	r.LastMessageTimestamp, _ = node["lastMessageTimestamp"].(int64)

	if parts, ok := node["participants"].(map[string]any); ok {
		for id := range parts {
			r.Participants = append(r.Participants, id)
		}
	}
	if details, ok := node["participantDetails"].(map[string]any); ok {
		for id, rawDetail := range details {
			d, ok := rawDetail.(map[string]any)
			if !ok {
				continue
			}
			var p Participant
			p.Role, _ = d["role"].(string)
			p.LastRead, _ = d["lastRead"].(int64)
			r.Details[id] = p
		}
	}
	return r, nil
}
