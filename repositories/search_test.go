package repositories

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = writer.Close()
	})
	return NewMessageIndex(writer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMessageIndex_Search_Is_Scoped_To_Room(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	ctx := context.Background()

	room := uuid.NewString()
	other := uuid.NewString()
	hit := DiskMessage{ID: uuid.NewString(), Room: room, Content: "We migrate to PostgreSQL next week"}
	miss := DiskMessage{ID: uuid.NewString(), Room: room, Content: "Lunch at noon?"}
	leak := DiskMessage{ID: uuid.NewString(), Room: other, Content: "PostgreSQL is down"}
	for _, m := range []DiskMessage{hit, miss, leak} {
		req.NoError(index.Index(m))
	}

	// When searching the first room
	ids, err := index.Search(ctx, room, "postgresql", 10)
	req.NoError(err)

	// Then the other room's message never shows up
	req.Equal([]string{hit.ID}, ids)
}

func TestMessageIndex_Search_Attachment_Name(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	room := uuid.NewString()
	message := DiskMessage{
		ID:         uuid.NewString(),
		Room:       room,
		Attachment: &DiskAttachment{URL: "/uploads/x.pdf", Name: "Q3 roadmap final.pdf", MimeType: "application/pdf"},
	}
	req.NoError(index.Index(message))

	ids, err := index.Search(context.Background(), room, "roadmap", 10)
	req.NoError(err)
	req.Equal([]string{message.ID}, ids)
}
