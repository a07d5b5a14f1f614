package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink stores every event it receives. When blocking is set it waits
// for its context instead, like a connection whose outbox is full.
type recordingSink struct {
	mu       sync.Mutex
	events   []event.Outbound
	blocking bool
	fail     error
	closed   bool
}

func (s *recordingSink) Consume(ctx context.Context, e event.Outbound) error {
	s.mu.Lock()
	blocking, fail := s.blocking, s.fail
	s.mu.Unlock()

	if fail != nil {
		return fail
	}
	if blocking {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Events() []event.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Outbound(nil), s.events...)
}

func (s *recordingSink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// stubChecker authorizes from an in-memory participant table.
type stubChecker struct {
	rooms map[chat.RoomID][]chat.UserID
	delay time.Duration
}

func (c stubChecker) Authorize(roomID chat.RoomID, userID chat.UserID) (chat.Room, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	participants, ok := c.rooms[roomID]
	if !ok {
		return chat.Room{}, fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
	}
	room := chat.Room{ID: roomID, Participants: participants}
	if !room.HasParticipant(userID) {
		return chat.Room{}, fmt.Errorf("%w: %s", errors.ErrForbidden, userID)
	}
	return room, nil
}

func messageIn(roomID chat.RoomID, content string) event.ReceiveMessage {
	return event.ReceiveMessage{Message: chat.MessageView{
		Message: chat.Message{ID: chat.MessageID("m-" + content), RoomID: roomID, Content: content},
	}}
}
