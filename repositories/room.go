//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	apperrors "chat-relay/errors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const maxConflictRetries = 5

type IRoomRepository interface {
	CreateRoom(room DiskRoom) error
	CreatePrivateRoom(pairKey string, room DiskRoom) (DiskRoom, bool, error)
	GetRoom(id string) (DiskRoom, error)
	ListRoomsFor(userID string) ([]DiskRoom, error)
	ListRooms() ([]DiskRoom, error)
	SetLastMessage(roomID, messageID string) error
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

type DiskRoom struct {
	ID            string    `json:"id"`
	Name          *string   `json:"name,omitempty"`
	IsPrivate     bool      `json:"is_private"`
	Participants  []string  `json:"participants"`
	LastMessageID *string   `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Keys:
//
//	room:{room_id}               -> DiskRoom
//	member:{user_id}:{room_id}   -> empty, lets a user's rooms be found with one prefix scan
//	private:{low_id}:{high_id}   -> room_id, at most one private room per pair
func roomKey(id string) []byte { return []byte("room:" + id) }

func memberPrefix(userID string) []byte { return []byte("member:" + userID + ":") }

func memberKey(userID, roomID string) []byte {
	return append(memberPrefix(userID), roomID...)
}

func privateKey(pairKey string) []byte { return []byte("private:" + pairKey) }

// CreateRoom persists a new room and its membership index in a single transaction.
func (r RoomRepository) CreateRoom(room DiskRoom) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return putRoom(txn, room)
	})
}

// CreatePrivateRoom stores room under the pair key unless the pair already owns a room,
// in which case the existing room is returned and created is false.
// Two transactions racing on the same pair conflict on the pair key; the loser retries,
// reads the winner's room and returns it.
func (r RoomRepository) CreatePrivateRoom(pairKey string, room DiskRoom) (DiskRoom, bool, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, created, err := r.createPrivateRoom(pairKey, room)
		if errors.Is(err, badger.ErrConflict) {
			r.log.Debug("Private room creation conflicted, retrying", "pair", pairKey, "attempt", attempt)
			continue
		}
		return result, created, err
	}
	return DiskRoom{}, false, fmt.Errorf("private room %s: %w", pairKey, badger.ErrConflict)
}

func (r RoomRepository) createPrivateRoom(pairKey string, room DiskRoom) (DiskRoom, bool, error) {
	var result DiskRoom
	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(privateKey(pairKey))
		switch {
		case err == nil:
			roomID, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result, err = getRoom(txn, string(roomID))
			return err
		case errors.Is(err, badger.ErrKeyNotFound):
			if err = txn.Set(privateKey(pairKey), []byte(room.ID)); err != nil {
				return err
			}
			if err = putRoom(txn, room); err != nil {
				return err
			}
			result, created = room, true
			return nil
		default:
			return err
		}
	})
	return result, created, err
}

func (r RoomRepository) GetRoom(id string) (DiskRoom, error) {
	var room DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	return room, err
}

// ListRoomsFor scans the membership index of userID; no room documents are scanned.
func (r RoomRepository) ListRoomsFor(userID string) ([]DiskRoom, error) {
	var rooms []DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var roomIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomIDs = append(roomIDs, string(it.Item().Key()[len(prefix):]))
		}
		for _, id := range roomIDs {
			room, err := getRoom(txn, id)
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

func (r RoomRepository) ListRooms() ([]DiskRoom, error) {
	var rooms []DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room DiskRoom
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &room)
			}); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

// SetLastMessage moves the denormalized last-message pointer of a room.
func (r RoomRepository) SetLastMessage(roomID, messageID string) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(func(txn *badger.Txn) error {
			room, err := getRoom(txn, roomID)
			if err != nil {
				return err
			}
			room.LastMessageID = &messageID
			return putRoomDocument(txn, room)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getRoom(txn *badger.Txn, id string) (DiskRoom, error) {
	var room DiskRoom
	item, err := txn.Get(roomKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DiskRoom{}, fmt.Errorf("%w: room %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return DiskRoom{}, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &room)
	})
	return room, err
}

func putRoom(txn *badger.Txn, room DiskRoom) error {
	if err := putRoomDocument(txn, room); err != nil {
		return err
	}
	for _, participant := range room.Participants {
		if err := txn.Set(memberKey(participant, room.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func putRoomDocument(txn *badger.Txn, room DiskRoom) error {
	bytes, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room failed: %w", err)
	}
	return txn.Set(roomKey(room.ID), bytes)
}
