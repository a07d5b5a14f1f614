//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the transport handle of one live connection.
// Consume must only enqueue: it may block until ctx is done but never on network I/O.
type EventSink interface {
	Consume(ctx context.Context, e event.Outbound) error
}

// Target is a read-only snapshot of a live connection, valid for one dispatch.
type Target struct {
	ConnectionID chat.ConnectionID
	Identity     chat.Identity
	Sink         EventSink
}

type IRegistry interface {
	Register(identity chat.Identity, sink EventSink) chat.ConnectionID
	Unregister(id chat.ConnectionID) (Target, bool)
	JoinRoom(id chat.ConnectionID, roomID chat.RoomID) error
	LeaveRoom(id chat.ConnectionID, roomID chat.RoomID)
	TargetsForRoom(roomID chat.RoomID) []Target
	TargetsForIdentities(userIDs []chat.UserID) []Target
	AllTargets() []Target
}

// ParticipantChecker resolves a room and fails unless userID takes part in it.
type ParticipantChecker interface {
	Authorize(roomID chat.RoomID, userID chat.UserID) (chat.Room, error)
}

// TokenVerifier turns an identity token issued by the auth collaborator into an Identity.
type TokenVerifier interface {
	Verify(token string) (chat.Identity, error)
}

type DeliveryFailure struct {
	ConnectionID chat.ConnectionID
	Err          error
}

// DeliveryReport aggregates the outcome of one broadcast.
type DeliveryReport struct {
	Attempted int
	Delivered []chat.ConnectionID
	Failures  []DeliveryFailure
}

type Publisher interface {
	Publish(ctx context.Context, evt event.ReceiveMessage) (DeliveryReport, error)
	PublishToRoom(ctx context.Context, roomID chat.RoomID, evt event.Outbound) DeliveryReport
	PublishToIdentities(ctx context.Context, userIDs []chat.UserID, evt event.Outbound) DeliveryReport
}
