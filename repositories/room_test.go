package repositories

import (
	apperrors "chat-relay/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newDiskRoom(isPrivate bool, participants ...string) DiskRoom {
	return DiskRoom{
		ID:           uuid.NewString(),
		IsPrivate:    isPrivate,
		Participants: participants,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestRoomRepository_Create_And_List_For_Participant(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	// Given two rooms, only one of them with bob
	general := newDiskRoom(false, "alice", "bob", "carol")
	general.Name = lo.ToPtr("general")
	secret := newDiskRoom(false, "alice", "carol")
	req.NoError(repository.CreateRoom(general))
	req.NoError(repository.CreateRoom(secret))

	// When listing bob's rooms
	rooms, err := repository.ListRoomsFor("bob")
	req.NoError(err)

	// Then only the shared room is found
	req.Len(rooms, 1)
	req.Equal(general.ID, rooms[0].ID)
	req.Equal("general", *rooms[0].Name)

	rooms, err = repository.ListRoomsFor("alice")
	req.NoError(err)
	req.Len(rooms, 2)

	all, err := repository.ListRooms()
	req.NoError(err)
	req.Len(all, 2)
}

func TestRoomRepository_Get_Unknown_Room(t *testing.T) {
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	_, err := repository.GetRoom(uuid.NewString())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRoomRepository_Private_Room_Is_Unique_Per_Pair(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	first, created, err := repository.CreatePrivateRoom("alice:bob", newDiskRoom(true, "alice", "bob"))
	req.NoError(err)
	req.True(created)

	// When the same pair asks again with a fresh room
	second, created, err := repository.CreatePrivateRoom("alice:bob", newDiskRoom(true, "bob", "alice"))
	req.NoError(err)

	// Then the stored room is returned and nothing new is written
	req.False(created)
	req.Equal(first.ID, second.ID)
	rooms, err := repository.ListRoomsFor("alice")
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestRoomRepository_Private_Room_Concurrent_Creation(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _, err := repository.CreatePrivateRoom("alice:bob", newDiskRoom(true, "alice", "bob"))
			ids[i], errs[i] = room.ID, err
		}(i)
	}
	wg.Wait()

	// Then every caller observed the same room and only one exists
	for i := 0; i < callers; i++ {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
	}
	all, err := repository.ListRooms()
	req.NoError(err)
	req.Len(all, 1)
}

func TestRoomRepository_Set_Last_Message(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	room := newDiskRoom(false, "alice")
	req.NoError(repository.CreateRoom(room))

	messageID := uuid.NewString()
	req.NoError(repository.SetLastMessage(room.ID, messageID))

	fetched, err := repository.GetRoom(room.ID)
	req.NoError(err)
	req.Equal(messageID, *fetched.LastMessageID)

	req.ErrorIs(repository.SetLastMessage(uuid.NewString(), messageID), apperrors.ErrNotFound)
}
