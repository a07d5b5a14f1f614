package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ChatDirectory owns rooms, their participant sets and their last-message pointer.
type ChatDirectory struct {
	rooms repositories.IRoomRepository
	log   *slog.Logger
	// serializes private room creation inside this process, the pair key covers the rest
	privateMu sync.Mutex
	now       func() time.Time
}

func NewChatDirectory(rooms repositories.IRoomRepository, log *slog.Logger) *ChatDirectory {
	return &ChatDirectory{rooms: rooms, log: log, now: time.Now}
}

// ListRoomsFor returns every room userID takes part in.
func (d *ChatDirectory) ListRoomsFor(userID chat.UserID) ([]chat.Room, error) {
	rooms, err := d.rooms.ListRoomsFor(string(userID))
	if err != nil {
		return nil, fmt.Errorf("list rooms of %s: %w", userID, err)
	}
	return lo.Map(rooms, func(r repositories.DiskRoom, _ int) chat.Room {
		return toRoom(r)
	}), nil
}

// CreateOrGetPrivateRoom returns the single private room of the pair {a, b}, creating it if needed.
// created is true only for the caller that actually stored the room.
func (d *ChatDirectory) CreateOrGetPrivateRoom(a, b chat.UserID) (room chat.Room, created bool, err error) {
	if a == "" || b == "" {
		return chat.Room{}, false, fmt.Errorf("%w: private room needs two participants", errors.ErrValidation)
	}
	if a == b {
		return chat.Room{}, false, fmt.Errorf("%w: private room needs two distinct participants", errors.ErrValidation)
	}

	d.privateMu.Lock()
	defer d.privateMu.Unlock()

	candidate := repositories.DiskRoom{
		ID:           uuid.NewString(),
		IsPrivate:    true,
		Participants: []string{string(a), string(b)},
		CreatedAt:    d.now().UTC(),
	}
	stored, created, err := d.rooms.CreatePrivateRoom(chat.PrivatePairKey(a, b), candidate)
	if err != nil {
		return chat.Room{}, false, fmt.Errorf("create private room: %w", err)
	}
	if created {
		d.log.Debug("Private room created", "room_id", stored.ID)
	}
	return toRoom(stored), created, nil
}

// CreateRoom creates a room for requester and the given participants.
// The requester is always part of the room; a private request resolves to the pair's room.
func (d *ChatDirectory) CreateRoom(requester chat.UserID, cmd chat.CreateRoomCommand) (chat.Room, bool, error) {
	if requester == "" {
		return chat.Room{}, false, fmt.Errorf("%w: requester is missing", errors.ErrValidation)
	}
	if lo.Contains(cmd.Participants, "") {
		return chat.Room{}, false, fmt.Errorf("%w: empty participant id", errors.ErrValidation)
	}

	participants := lo.Uniq(append([]chat.UserID{requester}, cmd.Participants...))

	if cmd.IsPrivate {
		others := lo.Without(participants, requester)
		if len(others) != 1 {
			return chat.Room{}, false, fmt.Errorf("%w: a private room has exactly one other participant, got %d",
				errors.ErrValidation, len(others))
		}
		return d.CreateOrGetPrivateRoom(requester, others[0])
	}

	var name *string
	if cmd.Name != nil {
		trimmed := strings.TrimSpace(*cmd.Name)
		if trimmed != "" {
			name = &trimmed
		}
	}

	room := repositories.DiskRoom{
		ID:   uuid.NewString(),
		Name: name,
		Participants: lo.Map(participants, func(id chat.UserID, _ int) string {
			return string(id)
		}),
		CreatedAt: d.now().UTC(),
	}
	if err := d.rooms.CreateRoom(room); err != nil {
		return chat.Room{}, false, fmt.Errorf("create room: %w", err)
	}
	return toRoom(room), true, nil
}

func (d *ChatDirectory) GetRoom(roomID chat.RoomID) (chat.Room, error) {
	if roomID == "" {
		return chat.Room{}, fmt.Errorf("%w: room id is missing", errors.ErrNotFound)
	}
	room, err := d.rooms.GetRoom(string(roomID))
	if err != nil {
		return chat.Room{}, fmt.Errorf("room %s: %w", roomID, err)
	}
	return toRoom(room), nil
}

// AssertParticipant fails with ErrForbidden unless userID takes part in room.
func (d *ChatDirectory) AssertParticipant(room chat.Room, userID chat.UserID) error {
	if !room.HasParticipant(userID) {
		return fmt.Errorf("%w: user %s is not a participant of room %s", errors.ErrForbidden, userID, room.ID)
	}
	return nil
}

// Authorize resolves roomID and checks userID takes part in it.
// Every room read, message read or write and live join goes through it.
func (d *ChatDirectory) Authorize(roomID chat.RoomID, userID chat.UserID) (chat.Room, error) {
	room, err := d.GetRoom(roomID)
	if err != nil {
		return chat.Room{}, err
	}
	if err := d.AssertParticipant(room, userID); err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

func (d *ChatDirectory) RecordLastMessage(roomID chat.RoomID, messageID chat.MessageID) error {
	return d.rooms.SetLastMessage(string(roomID), string(messageID))
}

func toRoom(r repositories.DiskRoom) chat.Room {
	room := chat.Room{
		ID:        chat.RoomID(r.ID),
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		Participants: lo.Map(r.Participants, func(id string, _ int) chat.UserID {
			return chat.UserID(id)
		}),
		CreatedAt: r.CreatedAt,
	}
	if r.LastMessageID != nil {
		room.LastMessageID = lo.ToPtr(chat.MessageID(*r.LastMessageID))
	}
	return room
}
