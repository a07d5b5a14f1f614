package chat

import (
	"slices"
	"time"
)

type RoomID string

// Room is a conversation scope owning a participant set and an ordered history.
// A private room always holds exactly two distinct participants.
type Room struct {
	ID            RoomID
	Name          *string
	IsPrivate     bool
	Participants  []UserID
	LastMessageID *MessageID
	CreatedAt     time.Time
}

func (r Room) HasParticipant(userID UserID) bool {
	return slices.Contains(r.Participants, userID)
}

// PrivatePairKey returns the order-independent key of a two-party conversation.
func PrivatePairKey(a, b UserID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}

// RoomSummary is a room with its participants and last message resolved for display.
type RoomSummary struct {
	Room         Room
	Participants []Identity
	LastMessage  *Message
}

// LastActivity is the instant used to order conversation lists by recency.
func (s RoomSummary) LastActivity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.Room.CreatedAt
}
