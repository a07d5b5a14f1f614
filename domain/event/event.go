// Package event defines the closed set of live events exchanged with connected clients.
// Inbound and Outbound are sealed: only the types declared here implement them,
// so a type switch over either interface is exhaustive.
package event

import (
	"chat-relay/domain/chat"
)

type Kind string

const (
	KindJoinRoom       Kind = "join_room"
	KindLeaveRoom      Kind = "leave_room"
	KindSendMessage    Kind = "send_message"
	KindReceiveMessage Kind = "receive_message"
	KindNewChat        Kind = "new_chat"
	KindUpdateChat     Kind = "update_chat"
	KindError          Kind = "error"
)

// Inbound is an event sent by a client.
type Inbound interface {
	Kind() Kind
	inbound()
}

type JoinRoom struct {
	Room chat.RoomID
}

func (JoinRoom) Kind() Kind { return KindJoinRoom }
func (JoinRoom) inbound()   {}

type LeaveRoom struct {
	Room chat.RoomID
}

func (LeaveRoom) Kind() Kind { return KindLeaveRoom }
func (LeaveRoom) inbound()   {}

type SendMessage struct {
	Room       chat.RoomID
	Content    string
	Attachment *chat.Attachment
}

func (SendMessage) Kind() Kind { return KindSendMessage }
func (SendMessage) inbound()   {}

// Outbound is an event pushed to a live connection.
type Outbound interface {
	Kind() Kind
	outbound()
}

type ReceiveMessage struct {
	Message chat.MessageView
}

func (ReceiveMessage) Kind() Kind { return KindReceiveMessage }
func (ReceiveMessage) outbound()  {}

// RoomID is the routing key of the message. It is empty for unrouted messages.
func (r ReceiveMessage) RoomID() chat.RoomID {
	return r.Message.Message.RoomID
}

type NewChat struct {
	Chat chat.RoomSummary
}

func (NewChat) Kind() Kind { return KindNewChat }
func (NewChat) outbound()  {}

type UpdateChat struct {
	Chat chat.RoomSummary
}

func (UpdateChat) Kind() Kind { return KindUpdateChat }
func (UpdateChat) outbound()  {}

// Error reports a rejected inbound event to the connection that sent it.
type Error struct {
	Code    string
	Message string
	Cause   Kind
}

func (Error) Kind() Kind { return KindError }
func (Error) outbound()  {}
