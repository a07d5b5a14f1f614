package services

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"chat-relay/repositories"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RoomDirectory is the part of the chat directory the message log relies on.
type RoomDirectory interface {
	Authorize(roomID chat.RoomID, userID chat.UserID) (chat.Room, error)
	RecordLastMessage(roomID chat.RoomID, messageID chat.MessageID) error
}

// ContentModerator rewrites message content before it is stored.
type ContentModerator interface {
	Moderate(content string) string
}

// roomClock serializes appends of one room and remembers the last timestamp handed out.
type roomClock struct {
	mu     sync.Mutex
	seeded bool
	last   time.Time
}

// MessageLog is the append-only, per-room ordered message store.
type MessageLog struct {
	messages         repositories.IMessageRepository
	index            repositories.IMessageIndex
	directory        RoomDirectory
	moderator        ContentModerator
	indexQueue       chan<- repositories.DiskMessage
	maxContentLength int
	searchLimit      int
	log              *slog.Logger
	now              func() time.Time

	mu     sync.Mutex
	clocks map[chat.RoomID]*roomClock
}

func NewMessageLog(
	messages repositories.IMessageRepository,
	index repositories.IMessageIndex,
	directory RoomDirectory,
	maxContentLength, searchLimit int,
	log *slog.Logger) *MessageLog {
	return &MessageLog{
		messages:         messages,
		index:            index,
		directory:        directory,
		maxContentLength: maxContentLength,
		searchLimit:      searchLimit,
		log:              log,
		now:              time.Now,
		clocks:           make(map[chat.RoomID]*roomClock),
	}
}

// WithModerator censors content of every appended message.
func (l *MessageLog) WithModerator(moderator ContentModerator) *MessageLog {
	l.moderator = moderator
	return l
}

// WithIndexQueue hands every appended message to the search indexer.
// The queue is never waited on: a full queue drops the request.
func (l *MessageLog) WithIndexQueue(queue chan<- repositories.DiskMessage) *MessageLog {
	l.indexQueue = queue
	return l
}

// Append validates and stores a message at the end of its room.
func (l *MessageLog) Append(cmd chat.PostMessageCommand) (chat.Message, error) {
	if _, err := l.directory.Authorize(cmd.Room, cmd.SenderID); err != nil {
		return chat.Message{}, err
	}
	if err := l.validate(cmd); err != nil {
		return chat.Message{}, err
	}

	content := cmd.Content
	if l.moderator != nil && content != "" {
		content = l.moderator.Moderate(content)
	}

	clock, err := l.clockFor(cmd.Room)
	if err != nil {
		return chat.Message{}, err
	}
	clock.mu.Lock()
	defer clock.mu.Unlock()

	seq, err := l.messages.NextSequence()
	if err != nil {
		return chat.Message{}, fmt.Errorf("next sequence: %w", err)
	}

	at := l.now().UTC()
	if at.Before(clock.last) {
		at = clock.last
	}

	message := chat.Message{
		ID:         chat.MessageID(uuid.NewString()),
		Seq:        seq,
		SenderID:   cmd.SenderID,
		RoomID:     cmd.Room,
		Content:    content,
		Attachment: cmd.Attachment,
		CreatedAt:  at,
	}
	disk := toDiskMessage(message)
	if err := l.messages.StoreMessage(disk); err != nil {
		return chat.Message{}, fmt.Errorf("store message: %w", err)
	}
	clock.last = at

	// The message is durable, a stale pointer only degrades previews
	if err := l.directory.RecordLastMessage(message.RoomID, message.ID); err != nil {
		l.log.Error("Unable to record last message",
			"room_id", message.RoomID, "message_id", message.ID, "error", err)
	}

	l.enqueueIndex(disk)
	return message, nil
}

// ListMessages returns the history of a room in sequence order.
func (l *MessageLog) ListMessages(roomID chat.RoomID, userID chat.UserID) ([]chat.Message, error) {
	if _, err := l.directory.Authorize(roomID, userID); err != nil {
		return nil, err
	}
	messages, err := l.messages.GetMessages(string(roomID))
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", roomID, err)
	}
	return lo.Map(messages, func(m repositories.DiskMessage, _ int) chat.Message {
		return toMessage(m)
	}), nil
}

func (l *MessageLog) GetMessage(id chat.MessageID) (chat.Message, error) {
	message, err := l.messages.GetMessage(string(id))
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(message), nil
}

// SearchMessages runs a full-text query scoped to one room.
// Results are returned in sequence order.
func (l *MessageLog) SearchMessages(ctx context.Context, userID chat.UserID, cmd chat.SearchMessagesCommand) ([]chat.Message, error) {
	if _, err := l.directory.Authorize(cmd.Room, userID); err != nil {
		return nil, err
	}
	terms := strings.TrimSpace(cmd.Terms)
	if terms == "" {
		return nil, fmt.Errorf("%w: search terms are missing", errors.ErrValidation)
	}

	limit := l.searchLimit
	if cmd.Limit > 0 && cmd.Limit < limit {
		limit = cmd.Limit
	}
	ids, err := l.index.Search(ctx, string(cmd.Room), terms, limit)
	if err != nil {
		return nil, fmt.Errorf("search room %s: %w", cmd.Room, err)
	}

	results := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := l.messages.GetMessage(id)
		if err != nil {
			l.log.Warn("Indexed message is missing from the log", "message_id", id, "error", err)
			continue
		}
		results = append(results, toMessage(message))
	}
	slices.SortFunc(results, func(a, b chat.Message) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return results, nil
}

func (l *MessageLog) validate(cmd chat.PostMessageCommand) error {
	if strings.TrimSpace(cmd.Content) == "" && cmd.Attachment == nil {
		return fmt.Errorf("%w: message has neither content nor attachment", errors.ErrValidation)
	}
	if cmd.Attachment != nil && strings.TrimSpace(cmd.Attachment.URL) == "" {
		return fmt.Errorf("%w: attachment url is missing", errors.ErrValidation)
	}
	if cmd.Attachment != nil && cmd.Attachment.MimeType != "" {
		if _, ok := mimetypes.Parse(cmd.Attachment.MimeType); !ok {
			return fmt.Errorf("%w: attachment type %q", errors.ErrUnsupportedFileType, cmd.Attachment.MimeType)
		}
	}
	if l.maxContentLength > 0 && utf8.RuneCountInString(cmd.Content) > l.maxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", errors.ErrValidation, l.maxContentLength)
	}
	return nil
}

// clockFor returns the clock of a room, seeding it from the newest stored message
// so that timestamps keep increasing across restarts.
func (l *MessageLog) clockFor(roomID chat.RoomID) (*roomClock, error) {
	l.mu.Lock()
	clock, ok := l.clocks[roomID]
	if !ok {
		clock = &roomClock{}
		l.clocks[roomID] = clock
	}
	l.mu.Unlock()

	clock.mu.Lock()
	defer clock.mu.Unlock()
	if clock.seeded {
		return clock, nil
	}
	last, err := l.messages.LastMessage(string(roomID))
	if err != nil {
		return nil, fmt.Errorf("last message of %s: %w", roomID, err)
	}
	if last != nil {
		clock.last = last.At
	}
	clock.seeded = true
	return clock, nil
}

func (l *MessageLog) enqueueIndex(message repositories.DiskMessage) {
	if l.indexQueue == nil {
		return
	}
	select {
	case l.indexQueue <- message:
	default:
		l.log.Warn("Index queue is full, message will not be searchable", "message_id", message.ID)
	}
}

func toDiskMessage(m chat.Message) repositories.DiskMessage {
	disk := repositories.DiskMessage{
		ID:      string(m.ID),
		Seq:     m.Seq,
		Room:    string(m.RoomID),
		Author:  string(m.SenderID),
		Content: m.Content,
		At:      m.CreatedAt,
	}
	if m.Attachment != nil {
		disk.Attachment = &repositories.DiskAttachment{
			URL:      m.Attachment.URL,
			Name:     m.Attachment.Name,
			MimeType: m.Attachment.MimeType,
		}
	}
	return disk
}

func toMessage(m repositories.DiskMessage) chat.Message {
	message := chat.Message{
		ID:        chat.MessageID(m.ID),
		Seq:       m.Seq,
		SenderID:  chat.UserID(m.Author),
		RoomID:    chat.RoomID(m.Room),
		Content:   m.Content,
		CreatedAt: m.At,
	}
	if m.Attachment != nil {
		message.Attachment = &chat.Attachment{
			URL:      m.Attachment.URL,
			Name:     m.Attachment.Name,
			MimeType: m.Attachment.MimeType,
		}
	}
	return message
}
