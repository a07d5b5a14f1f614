package workers

import (
	"chat-relay/repositories"
	"context"
	"log/slog"
)

// IndexerWorker feeds appended messages to the full-text index.
// Indexing is best effort: a failure is logged and the message stays unsearchable.
type IndexerWorker struct {
	index repositories.IMessageIndex
	queue <-chan repositories.DiskMessage
	log   *slog.Logger
}

func NewIndexerWorker(index repositories.IMessageIndex, queue <-chan repositories.DiskMessage, log *slog.Logger) *IndexerWorker {
	return &IndexerWorker{index: index, queue: queue, log: log}
}

func (w *IndexerWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case message, ok := <-w.queue:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if err := w.index.Index(message); err != nil {
				w.log.Warn("Unable to index message", "message_id", message.ID, "room_id", message.Room, "error", err)
			}
		}
	}
}
