package chat

import (
	"strings"
	"time"
)

type MessageID string

// Attachment points to a file stored by the upload collaborator.
type Attachment struct {
	URL      string
	Name     string
	MimeType string
}

// Message is immutable once appended.
// Seq is the per-room ordering key; CreatedAt never decreases along it.
type Message struct {
	ID         MessageID
	Seq        uint64
	SenderID   UserID
	RoomID     RoomID
	Content    string
	Attachment *Attachment
	CreatedAt  time.Time
}

// IsEmpty reports whether the message carries neither text nor a file.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && m.Attachment == nil
}

// MessageView is a message with its sender resolved for display.
type MessageView struct {
	Message Message
	Sender  Identity
}
