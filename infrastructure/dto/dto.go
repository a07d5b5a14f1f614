// Package dto holds the JSON shapes shared by the REST and websocket surfaces.
package dto

import (
	"chat-relay/domain/chat"
	"time"

	"github.com/samber/lo"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Message struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Sender    User      `json:"sender"`
	ChatRoom  string    `json:"chatRoom"`
	Content   string    `json:"content"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	FileType  string    `json:"fileType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChatRoom struct {
	ID           string    `json:"id"`
	Name         *string   `json:"name,omitempty"`
	IsPrivate    bool      `json:"isPrivate"`
	Participants []User    `json:"participants"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Credentials struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Upload struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func FromIdentity(identity chat.Identity) User {
	return User{ID: string(identity.ID), Username: identity.Username}
}

func FromMessageView(view chat.MessageView) Message {
	return fromMessage(view.Message, FromIdentity(view.Sender))
}

func FromMessageViews(views []chat.MessageView) []Message {
	return lo.Map(views, func(view chat.MessageView, _ int) Message {
		return FromMessageView(view)
	})
}

// FromRoomSummary resolves the sender of the last message from the participant list.
func FromRoomSummary(summary chat.RoomSummary) ChatRoom {
	participants := lo.Map(summary.Participants, func(identity chat.Identity, _ int) User {
		return FromIdentity(identity)
	})
	room := ChatRoom{
		ID:           string(summary.Room.ID),
		Name:         summary.Room.Name,
		IsPrivate:    summary.Room.IsPrivate,
		Participants: participants,
		CreatedAt:    summary.Room.CreatedAt,
	}
	if last := summary.LastMessage; last != nil {
		sender, found := lo.Find(participants, func(u User) bool { return u.ID == string(last.SenderID) })
		if !found {
			sender = User{ID: string(last.SenderID)}
		}
		room.LastMessage = lo.ToPtr(fromMessage(*last, sender))
	}
	return room
}

func FromRoomSummaries(summaries []chat.RoomSummary) []ChatRoom {
	return lo.Map(summaries, func(summary chat.RoomSummary, _ int) ChatRoom {
		return FromRoomSummary(summary)
	})
}

// ToAttachment returns nil unless a file url is given.
func ToAttachment(url, name, mimeType string) *chat.Attachment {
	if url == "" {
		return nil
	}
	return &chat.Attachment{URL: url, Name: name, MimeType: mimeType}
}

func fromMessage(m chat.Message, sender User) Message {
	message := Message{
		ID:        string(m.ID),
		Seq:       m.Seq,
		Sender:    sender,
		ChatRoom:  string(m.RoomID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Attachment != nil {
		message.FileURL = m.Attachment.URL
		message.FileName = m.Attachment.Name
		message.FileType = m.Attachment.MimeType
	}
	return message
}
