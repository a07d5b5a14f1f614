package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MessagePoster persists a message and publishes it to live connections.
type MessagePoster interface {
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.MessageView, error)
}

type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Gateway opens sessions for transport connections.
type Gateway struct {
	verifier contract.TokenVerifier
	registry contract.IRegistry
	poster   MessagePoster
	log      *slog.Logger
}

func NewGateway(verifier contract.TokenVerifier, registry contract.IRegistry, poster MessagePoster, log *slog.Logger) *Gateway {
	return &Gateway{verifier: verifier, registry: registry, poster: poster, log: log}
}

// Open starts a session for a freshly accepted transport. Nothing is registered
// until the session is authenticated.
func (g *Gateway) Open(sink contract.EventSink) *Session {
	return &Session{gateway: g, sink: sink, state: StateConnecting}
}

// Session is the per-connection state machine:
// Connecting -> Authenticated -> Disconnected, the last state being terminal.
type Session struct {
	gateway *Gateway
	sink    contract.EventSink

	mu           sync.Mutex
	state        SessionState
	identity     chat.Identity
	connectionID chat.ConnectionID
}

// Authenticate verifies the token and registers the connection.
// A failed attempt disconnects the session.
func (s *Session) Authenticate(token string) (chat.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDisconnected:
		return chat.Identity{}, errors.ErrSessionClosed
	case StateAuthenticated:
		return chat.Identity{}, fmt.Errorf("%w: session already authenticated", errors.ErrValidation)
	}

	identity, err := s.gateway.verifier.Verify(token)
	if err != nil {
		s.state = StateDisconnected
		s.gateway.log.Debug("Authentication refused", "error", err)
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}

	s.identity = identity
	s.connectionID = s.gateway.registry.Register(identity, s.sink)
	s.state = StateAuthenticated
	return identity, nil
}

// Handle dispatches one inbound event. A rejection is returned and also sent back
// to this connection as an error event; the session stays open.
func (s *Session) Handle(ctx context.Context, in event.Inbound) error {
	s.mu.Lock()
	state, identity, connectionID := s.state, s.identity, s.connectionID
	s.mu.Unlock()

	switch state {
	case StateDisconnected:
		return errors.ErrSessionClosed
	case StateConnecting:
		return fmt.Errorf("%w: session is not authenticated", errors.ErrAuth)
	}

	if in == nil {
		err := fmt.Errorf("%w: empty event", errors.ErrValidation)
		s.reject(ctx, identity, "", err)
		return err
	}

	err := s.dispatch(ctx, identity, connectionID, in)
	if err != nil {
		s.reject(ctx, identity, in.Kind(), err)
	}
	return err
}

func (s *Session) dispatch(ctx context.Context, identity chat.Identity, connectionID chat.ConnectionID, in event.Inbound) error {
	switch e := in.(type) {
	case event.JoinRoom:
		return s.gateway.registry.JoinRoom(connectionID, e.Room)
	case event.LeaveRoom:
		s.gateway.registry.LeaveRoom(connectionID, e.Room)
		return nil
	case event.SendMessage:
		_, err := s.gateway.poster.PostMessage(ctx, chat.PostMessageCommand{
			Room:       e.Room,
			SenderID:   identity.ID,
			Content:    e.Content,
			Attachment: e.Attachment,
		})
		return err
	default:
		return fmt.Errorf("%w: unsupported event %T", errors.ErrValidation, in)
	}
}

// Reject reports a failure that happened before an event could be decoded.
func (s *Session) Reject(ctx context.Context, cause event.Kind, err error) {
	s.reject(ctx, s.Identity(), cause, err)
}

func (s *Session) reject(ctx context.Context, identity chat.Identity, cause event.Kind, err error) {
	if errors.MapToHTTPStatus(err) >= 500 {
		s.gateway.log.Error("Event failed", "kind", cause, "user_id", identity.ID, "error", err)
	}
	evt := event.Error{
		Code:    errors.ErrorCode(err),
		Message: errors.PublicMessage(err),
		Cause:   cause,
	}
	if sendErr := s.sink.Consume(ctx, evt); sendErr != nil {
		s.gateway.log.Debug("Unable to report error to connection", "error", sendErr)
	}
}

// Close unregisters the connection. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAuthenticated {
		s.gateway.registry.Unregister(s.connectionID)
	}
	s.state = StateDisconnected
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() chat.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) ConnectionID() chat.ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}
