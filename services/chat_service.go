//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

type IChatService interface {
	ListRooms(userID chat.UserID) ([]chat.RoomSummary, error)
	CreateRoom(ctx context.Context, requester chat.UserID, cmd chat.CreateRoomCommand) (chat.RoomSummary, error)
	GetRoom(roomID chat.RoomID, userID chat.UserID) (chat.RoomSummary, error)
	GetMessages(roomID chat.RoomID, userID chat.UserID) ([]chat.MessageView, error)
	SearchMessages(ctx context.Context, userID chat.UserID, cmd chat.SearchMessagesCommand) ([]chat.MessageView, error)
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.MessageView, error)
}

// ChatService is the entry point shared by the REST handlers and the live gateway.
// It persists first and only then publishes live events.
type ChatService struct {
	directory  *ChatDirectory
	messageLog *MessageLog
	identities *IdentityResolver
	publisher  contract.Publisher
	log        *slog.Logger
}

func NewChatService(
	directory *ChatDirectory,
	messageLog *MessageLog,
	identities *IdentityResolver,
	publisher contract.Publisher,
	log *slog.Logger) *ChatService {
	return &ChatService{
		directory:  directory,
		messageLog: messageLog,
		identities: identities,
		publisher:  publisher,
		log:        log,
	}
}

// ListRooms returns the rooms of userID, most recent activity first.
func (s *ChatService) ListRooms(userID chat.UserID) ([]chat.RoomSummary, error) {
	rooms, err := s.directory.ListRoomsFor(userID)
	if err != nil {
		return nil, err
	}
	summaries := lo.Map(rooms, func(room chat.Room, _ int) chat.RoomSummary {
		return s.summarize(room)
	})
	slices.SortStableFunc(summaries, func(a, b chat.RoomSummary) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
	return summaries, nil
}

// CreateRoom creates a room, or returns the existing one for a private pair.
// new_chat is only emitted when a room was actually created.
func (s *ChatService) CreateRoom(ctx context.Context, requester chat.UserID, cmd chat.CreateRoomCommand) (chat.RoomSummary, error) {
	room, created, err := s.directory.CreateRoom(requester, cmd)
	if err != nil {
		return chat.RoomSummary{}, err
	}
	summary := s.summarize(room)
	if created {
		report := s.publisher.PublishToIdentities(ctx, room.Participants, event.NewChat{Chat: summary})
		s.logReport("new_chat", room.ID, report)
	}
	return summary, nil
}

func (s *ChatService) GetRoom(roomID chat.RoomID, userID chat.UserID) (chat.RoomSummary, error) {
	room, err := s.directory.Authorize(roomID, userID)
	if err != nil {
		return chat.RoomSummary{}, err
	}
	return s.summarize(room), nil
}

func (s *ChatService) GetMessages(roomID chat.RoomID, userID chat.UserID) ([]chat.MessageView, error) {
	messages, err := s.messageLog.ListMessages(roomID, userID)
	if err != nil {
		return nil, err
	}
	return s.views(messages), nil
}

func (s *ChatService) SearchMessages(ctx context.Context, userID chat.UserID, cmd chat.SearchMessagesCommand) ([]chat.MessageView, error) {
	messages, err := s.messageLog.SearchMessages(ctx, userID, cmd)
	if err != nil {
		return nil, err
	}
	return s.views(messages), nil
}

// PostMessage appends the message, then fans receive_message out to the room
// and update_chat out to every participant. Delivery failures never fail the post.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.MessageView, error) {
	message, err := s.messageLog.Append(cmd)
	if err != nil {
		return chat.MessageView{}, err
	}
	view := chat.MessageView{Message: message, Sender: s.identities.Resolve(message.SenderID)}

	report, err := s.publisher.Publish(ctx, event.ReceiveMessage{Message: view})
	if err != nil {
		s.log.Warn("Message stored but not published", "message_id", message.ID, "error", err)
	} else {
		s.logReport("receive_message", message.RoomID, report)
	}

	room, err := s.directory.GetRoom(message.RoomID)
	if err != nil {
		s.log.Warn("Unable to reload room for update_chat", "room_id", message.RoomID, "error", err)
		return view, nil
	}
	room.LastMessageID = &message.ID
	summary := chat.RoomSummary{
		Room:         room,
		Participants: s.identities.ResolveAll(room.Participants),
		LastMessage:  &message,
	}
	report = s.publisher.PublishToIdentities(ctx, room.Participants, event.UpdateChat{Chat: summary})
	s.logReport("update_chat", room.ID, report)

	return view, nil
}

// summarize resolves participants and the last message preview of a room.
func (s *ChatService) summarize(room chat.Room) chat.RoomSummary {
	summary := chat.RoomSummary{
		Room:         room,
		Participants: s.identities.ResolveAll(room.Participants),
	}
	if room.LastMessageID != nil {
		last, err := s.messageLog.GetMessage(*room.LastMessageID)
		if err != nil {
			s.log.Warn("Unable to load last message", "room_id", room.ID, "message_id", *room.LastMessageID, "error", err)
		} else {
			summary.LastMessage = &last
		}
	}
	return summary
}

func (s *ChatService) views(messages []chat.Message) []chat.MessageView {
	senders := make(map[chat.UserID]chat.Identity)
	return lo.Map(messages, func(m chat.Message, _ int) chat.MessageView {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender = s.identities.Resolve(m.SenderID)
			senders[m.SenderID] = sender
		}
		return chat.MessageView{Message: m, Sender: sender}
	})
}

func (s *ChatService) logReport(kind string, roomID chat.RoomID, report contract.DeliveryReport) {
	if len(report.Failures) == 0 {
		s.log.Debug("Event delivered", "kind", kind, "room_id", roomID,
			"attempted", report.Attempted, "delivered", len(report.Delivered))
		return
	}
	s.log.Warn("Event partially delivered", "kind", kind, "room_id", roomID,
		"attempted", report.Attempted, "delivered", len(report.Delivered), "failed", len(report.Failures))
}
