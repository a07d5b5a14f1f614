package repositories

import (
	apperrors "chat-relay/errors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const sequenceBandwidth = 1000

type IMessageRepository interface {
	NextSequence() (uint64, error)
	StoreMessage(message DiskMessage) error
	GetMessages(room string) ([]DiskMessage, error)
	GetMessage(id string) (DiskMessage, error)
	LastMessage(room string) (*DiskMessage, error)
	Close() error
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	sequence      *badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	sequence, err := db.GetSequence([]byte("seq:message"), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages, sequence: sequence}, nil
}

type DiskAttachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

type DiskMessage struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	Room       string          `json:"room"`
	Author     string          `json:"author"`
	Content    string          `json:"content"`
	Attachment *DiskAttachment `json:"attachment,omitempty"`
	At         time.Time       `json:"at"`
}

// Keys:
//
//	msg:{room_id}:{seq padded to 20 digits} -> DiskMessage
//	msgid:{message_id}                      -> message key
//
// Zero padding keeps lexicographical order equal to sequence order inside a room.
func messagePrefix(room string) []byte { return []byte(fmt.Sprintf("msg:%s:", room)) }

func messageKey(room string, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", room, seq))
}

func messageIDKey(id string) []byte { return []byte("msgid:" + id) }

// NextSequence hands out the ordering key of the next message.
// Values are strictly increasing for the lifetime of the database; a restart may skip values.
func (m *MessageRepository) NextSequence() (uint64, error) {
	return m.sequence.Next()
}

func (m *MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message failed: %w", err)
	}
	key := messageKey(message.Room, message.Seq)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(messageIDKey(message.ID), key)
	})
}

// GetMessages returns the history of a room in ascending sequence order.
// When limitMessages is set only the most recent messages are kept, still ascending.
func (m *MessageRepository) GetMessages(room string) ([]DiskMessage, error) {
	var messages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = m.limitMessages != nil
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if options.Reverse {
			// '~' sorts after every digit, so the reverse seek lands on the newest message
			seekKey = append(append([]byte{}, prefix...), '~')
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			message, err := decodeMessage(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.limitMessages != nil {
		slices.Reverse(messages)
	}
	return messages, nil
}

func (m *MessageRepository) GetMessage(id string) (DiskMessage, error) {
	var message DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		message, err = decodeMessage(item)
		return err
	})
	return message, err
}

// LastMessage returns the newest message of a room, or nil when the room is empty.
func (m *MessageRepository) LastMessage(room string) (*DiskMessage, error) {
	var last *DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), '~'))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		message, err := decodeMessage(it.Item())
		if err != nil {
			return err
		}
		last = &message
		return nil
	})
	return last, err
}

// Close returns the unused part of the leased sequence range.
func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

func decodeMessage(item *badger.Item) (DiskMessage, error) {
	var message DiskMessage
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &message)
	})
	return message, err
}
