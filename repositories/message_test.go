package repositories

import (
	apperrors "chat-relay/errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func storeMessages(t *testing.T, repository *MessageRepository, room string, authors ...string) []DiskMessage {
	t.Helper()
	at := time.Now().UTC()
	var stored []DiskMessage
	for i, author := range authors {
		seq, err := repository.NextSequence()
		require.NoError(t, err)
		message := DiskMessage{
			ID:      uuid.NewString(),
			Seq:     seq,
			Room:    room,
			Author:  author,
			Content: fmt.Sprintf("message %d", i),
			At:      at.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repository.StoreMessage(message))
		stored = append(stored, message)
	}
	return stored
}

func Test_Record_And_Get_Ordered_Messages(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)
	defer repository.Close()

	// Given messages stored in two rooms
	room := uuid.NewString()
	other := uuid.NewString()
	stored := storeMessages(t, repository, room, "Alice", "Bob", "Clara")
	storeMessages(t, repository, other, "Mallory")

	// When fetching the history of the first room
	fetched, err := repository.GetMessages(room)
	req.NoError(err)

	// Then only its messages come back, oldest first
	req.Len(fetched, len(stored))
	for i := range stored {
		req.Equal(stored[i].ID, fetched[i].ID)
		req.True(stored[i].At.Equal(fetched[i].At))
	}
	req.Less(fetched[0].Seq, fetched[1].Seq)
	req.Less(fetched[1].Seq, fetched[2].Seq)

	// And reading twice gives the same answer
	again, err := repository.GetMessages(room)
	req.NoError(err)
	req.Equal(fetched, again)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	req.NoError(err)
	defer repository.Close()

	room := uuid.NewString()
	stored := storeMessages(t, repository, room, "Alice", "Bob", "Clara")

	fetched, err := repository.GetMessages(room)
	req.NoError(err)

	// Then the most recent messages are kept, still ascending
	req.Len(fetched, limit)
	req.Equal(stored[1].ID, fetched[0].ID)
	req.Equal(stored[2].ID, fetched[1].ID)
}

func Test_Sequence_Order_Survives_Ten_Digit_Boundary(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)
	defer repository.Close()

	// Given sequences whose decimal widths differ
	room := uuid.NewString()
	for _, seq := range []uint64{10, 9, 100} {
		req.NoError(repository.StoreMessage(DiskMessage{ID: uuid.NewString(), Seq: seq, Room: room}))
	}

	// Then padding keeps numeric order
	fetched, err := repository.GetMessages(room)
	req.NoError(err)
	req.Equal([]uint64{9, 10, 100}, []uint64{fetched[0].Seq, fetched[1].Seq, fetched[2].Seq})
}

func Test_Get_Message_By_ID_And_Last_Message(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)
	defer repository.Close()

	room := uuid.NewString()

	// Given an empty room has no last message
	last, err := repository.LastMessage(room)
	req.NoError(err)
	req.Nil(last)

	stored := storeMessages(t, repository, room, "Alice", "Bob")

	message, err := repository.GetMessage(stored[0].ID)
	req.NoError(err)
	req.Equal("Alice", message.Author)

	last, err = repository.LastMessage(room)
	req.NoError(err)
	req.NotNil(last)
	req.Equal(stored[1].ID, last.ID)

	_, err = repository.GetMessage(uuid.NewString())
	req.ErrorIs(err, apperrors.ErrNotFound)
}
