package ws

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type tokenTable map[string]chat.Identity

func (t tokenTable) Verify(token string) (chat.Identity, error) {
	identity, ok := t[token]
	if !ok {
		return chat.Identity{}, fmt.Errorf("%w: unknown token", errors.ErrAuth)
	}
	return identity, nil
}

// roomTable answers participant checks from a fixed set of rooms.
type roomTable map[chat.RoomID][]chat.UserID

func (r roomTable) Authorize(roomID chat.RoomID, userID chat.UserID) (chat.Room, error) {
	participants, ok := r[roomID]
	if !ok {
		return chat.Room{}, fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
	}
	room := chat.Room{ID: roomID, Participants: participants}
	if !room.HasParticipant(userID) {
		return chat.Room{}, fmt.Errorf("%w: %s is not a participant of %s", errors.ErrForbidden, userID, roomID)
	}
	return room, nil
}

type recordingPoster struct {
	mu       sync.Mutex
	commands []chat.PostMessageCommand
}

func (p *recordingPoster) PostMessage(_ context.Context, cmd chat.PostMessageCommand) (chat.MessageView, error) {
	if strings.TrimSpace(cmd.Content) == "" && cmd.Attachment == nil {
		return chat.MessageView{}, fmt.Errorf("%w: empty message", errors.ErrValidation)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, cmd)
	return chat.MessageView{Message: chat.Message{ID: "m1", RoomID: cmd.Room, SenderID: cmd.SenderID, Content: cmd.Content}}, nil
}

func (p *recordingPoster) Commands() []chat.PostMessageCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chat.PostMessageCommand(nil), p.commands...)
}

type testServer struct {
	server   *httptest.Server
	handler  *Handler
	registry *runtime.Registry
	router   *runtime.Router
	poster   *recordingPoster
}

var testSettings = Settings{
	BufferSize:     16,
	WriteTimeout:   time.Second,
	PongTimeout:    5 * time.Second,
	MaxMessageSize: 4096,
}

func newTestServer(t *testing.T, origins ...string) *testServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	tokens := tokenTable{
		"alice-token": {ID: "alice", Username: "Alice"},
		"bob-token":   {ID: "bob", Username: "Bob"},
	}
	rooms := roomTable{
		"r1":     {"alice", "bob"},
		"secret": {"carol", "dave"},
	}
	registry := runtime.NewRegistry(rooms, log)
	poster := &recordingPoster{}
	gateway := runtime.NewGateway(tokens, registry, poster, log)
	handler := NewHandler(gateway, NewOriginPolicy(origins, log), testSettings, log)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testServer{
		server:   server,
		handler:  handler,
		registry: registry,
		router:   runtime.NewRouter(registry, time.Second, false, log),
		poster:   poster,
	}
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, kind string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": kind, "payload": payload}))
}

func readError(t *testing.T, conn *websocket.Conn) errorPayload {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, "error", f.Type)
	var payload errorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &payload))
	return payload
}
