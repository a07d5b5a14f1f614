package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

const (
	idField       = "_id"
	roomField     = "room"
	contentField  = "content"
	fileNameField = "file_name"
)

type IMessageIndex interface {
	Index(message DiskMessage) error
	Search(ctx context.Context, room, terms string, limit int) ([]string, error)
}

// MessageIndex is a full-text index over message content and attachment names.
// Documents carry the room as a keyword so a search never crosses rooms.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (i *MessageIndex) Index(message DiskMessage) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField(roomField, message.Room)).
		AddField(bluge.NewTextField(contentField, message.Content))
	if message.Attachment != nil {
		doc.AddField(bluge.NewTextField(fileNameField, message.Attachment.Name))
	}
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

// Search returns the ids of the best matching messages of room, most relevant first.
func (i *MessageIndex) Search(ctx context.Context, room, terms string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	text := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(terms).SetField(contentField)).
		AddShould(bluge.NewMatchQuery(terms).SetField(fileNameField)).
		SetMinShould(1)
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(room).SetField(roomField)).
		AddMust(text)

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search room %s: %w", room, err)
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	i.log.Debug("Message search done", "room", room, "terms", terms, "hits", len(ids))
	return ids, nil
}
