package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Set map[chat.ConnectionID]struct{}

type connection struct {
	identity  chat.Identity
	sink      contract.EventSink
	rooms     map[chat.RoomID]struct{}
	liveSince time.Time
}

func (c *connection) target(id chat.ConnectionID) contract.Target {
	return contract.Target{ConnectionID: id, Identity: c.identity, Sink: c.sink}
}

// Registry tracks live connections and the rooms they joined.
// Both indexes are only touched under mu so they never disagree.
type Registry struct {
	mu          sync.RWMutex
	connections map[chat.ConnectionID]*connection
	roomMembers map[chat.RoomID]Set
	checker     contract.ParticipantChecker
	log         *slog.Logger
}

func NewRegistry(checker contract.ParticipantChecker, log *slog.Logger) *Registry {
	return &Registry{
		connections: make(map[chat.ConnectionID]*connection),
		roomMembers: make(map[chat.RoomID]Set),
		checker:     checker,
		log:         log,
	}
}

// Register adds a live connection for identity. An identity may hold several connections.
func (r *Registry) Register(identity chat.Identity, sink contract.EventSink) chat.ConnectionID {
	id := chat.ConnectionID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[id] = &connection{
		identity:  identity,
		sink:      sink,
		rooms:     make(map[chat.RoomID]struct{}),
		liveSince: time.Now().UTC(),
	}
	r.log.Debug("Connection registered", "connection_id", id, "user_id", identity.ID)
	return id
}

// Unregister removes a connection and every room index entry pointing to it.
// The removed target is returned so that its transport can be closed; ok is false
// when the connection was already gone.
func (r *Registry) Unregister(id chat.ConnectionID) (contract.Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return contract.Target{}, false
	}
	for roomID := range conn.rooms {
		r.removeMember(roomID, id)
	}
	delete(r.connections, id)
	r.log.Debug("Connection unregistered", "connection_id", id, "user_id", conn.identity.ID,
		"live_for", time.Since(conn.liveSince))
	return conn.target(id), true
}

// JoinRoom subscribes a connection to the live events of a room its identity takes part in.
// The participant check runs without holding the lock; a connection unregistered in the
// meantime is reported as not found and nothing is added.
func (r *Registry) JoinRoom(id chat.ConnectionID, roomID chat.RoomID) error {
	r.mu.RLock()
	conn, ok := r.connections[id]
	var userID chat.UserID
	if ok {
		userID = conn.identity.ID
	}
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: connection %s", errors.ErrNotFound, id)
	}

	if _, err := r.checker.Authorize(roomID, userID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok = r.connections[id]
	if !ok {
		return fmt.Errorf("%w: connection %s", errors.ErrNotFound, id)
	}
	conn.rooms[roomID] = struct{}{}
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][id] = struct{}{}
	return nil
}

// LeaveRoom is idempotent: leaving a room never joined is not an error.
func (r *Registry) LeaveRoom(id chat.ConnectionID, roomID chat.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.connections[id]; ok {
		delete(conn.rooms, roomID)
	}
	r.removeMember(roomID, id)
}

func (r *Registry) TargetsForRoom(roomID chat.RoomID) []contract.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.roomMembers[roomID]
	targets := make([]contract.Target, 0, len(members))
	for id := range members {
		if conn, ok := r.connections[id]; ok {
			targets = append(targets, conn.target(id))
		}
	}
	return targets
}

// TargetsForIdentities returns every live connection of the given users, whatever room they joined.
func (r *Registry) TargetsForIdentities(userIDs []chat.UserID) []contract.Target {
	wanted := make(map[chat.UserID]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []contract.Target
	for id, conn := range r.connections {
		if _, ok := wanted[conn.identity.ID]; ok {
			targets = append(targets, conn.target(id))
		}
	}
	return targets
}

func (r *Registry) AllTargets() []contract.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]contract.Target, 0, len(r.connections))
	for id, conn := range r.connections {
		targets = append(targets, conn.target(id))
	}
	return targets
}

// JoinedRooms lists the rooms a connection currently receives events for.
func (r *Registry) JoinedRooms(id chat.ConnectionID) []chat.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[id]
	if !ok {
		return nil
	}
	rooms := make([]chat.RoomID, 0, len(conn.rooms))
	for roomID := range conn.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// removeMember must be called with mu held. Empty rooms are dropped from the index.
func (r *Registry) removeMember(roomID chat.RoomID, id chat.ConnectionID) {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
	}
}
