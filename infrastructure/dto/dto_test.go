package dto

import (
	"chat-relay/domain/chat"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromRoomSummary(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	alice := chat.Identity{ID: "alice", Username: "Alice"}
	bob := chat.Identity{ID: "bob", Username: "Bob"}

	t.Run("should resolve the last message sender from participants", func(t *testing.T) {
		req := require.New(t)
		// Given a private room whose last message was sent by bob
		summary := chat.RoomSummary{
			Room:         chat.Room{ID: "r1", IsPrivate: true, Participants: []chat.UserID{"alice", "bob"}, CreatedAt: now},
			Participants: []chat.Identity{alice, bob},
			LastMessage:  &chat.Message{ID: "m1", Seq: 3, SenderID: "bob", RoomID: "r1", Content: "hi", CreatedAt: now},
		}

		// When mapping it
		room := FromRoomSummary(summary)

		// Then the sender carries its username
		req.Equal("r1", room.ID)
		req.True(room.IsPrivate)
		req.Equal([]User{{ID: "alice", Username: "Alice"}, {ID: "bob", Username: "Bob"}}, room.Participants)
		req.NotNil(room.LastMessage)
		req.Equal(User{ID: "bob", Username: "Bob"}, room.LastMessage.Sender)
		req.Equal("hi", room.LastMessage.Content)
		req.Equal(uint64(3), room.LastMessage.Seq)
	})

	t.Run("should keep the sender id when it is not a participant anymore", func(t *testing.T) {
		req := require.New(t)
		summary := chat.RoomSummary{
			Room:         chat.Room{ID: "r1", Participants: []chat.UserID{"alice"}, CreatedAt: now},
			Participants: []chat.Identity{alice},
			LastMessage:  &chat.Message{ID: "m1", SenderID: "ghost", RoomID: "r1", CreatedAt: now},
		}

		room := FromRoomSummary(summary)

		req.Equal(User{ID: "ghost"}, room.LastMessage.Sender)
	})
}

func TestFromMessageView(t *testing.T) {
	req := require.New(t)
	// Given a message with an attachment
	view := chat.MessageView{
		Message: chat.Message{
			ID:         "m1",
			RoomID:     "r1",
			SenderID:   "alice",
			Attachment: &chat.Attachment{URL: "/uploads/a.png", Name: "a.png", MimeType: "image/png"},
		},
		Sender: chat.Identity{ID: "alice", Username: "Alice"},
	}

	// When mapping it
	message := FromMessageView(view)

	// Then the attachment is flattened
	req.Equal("/uploads/a.png", message.FileURL)
	req.Equal("a.png", message.FileName)
	req.Equal("image/png", message.FileType)
	req.Equal("r1", message.ChatRoom)
	req.Equal("Alice", message.Sender.Username)
}

func TestToAttachment(t *testing.T) {
	req := require.New(t)

	req.Nil(ToAttachment("", "name", "text/plain"))
	req.Equal(&chat.Attachment{URL: "/uploads/x", Name: "x", MimeType: "text/plain"}, ToAttachment("/uploads/x", "x", "text/plain"))
}
