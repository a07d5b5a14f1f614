// Package ws carries the live surface over websocket connections.
// Every connection gets a read pump and a write pump; the session behind it decides what the frames mean.
package ws

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// SessionOpener starts the session of a freshly upgraded connection.
type SessionOpener interface {
	Open(sink contract.EventSink) *runtime.Session
}

// Handler upgrades GET /ws requests and runs the connection until either side leaves.
type Handler struct {
	gateway  SessionOpener
	upgrader websocket.Upgrader
	settings Settings
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewHandler(gateway SessionOpener, origins *OriginPolicy, settings Settings, log *slog.Logger) *Handler {
	return &Handler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		settings: settings,
		log:      log,
		clients:  make(map[*Client]struct{}),
	}
}

// ServeHTTP upgrades first and authenticates afterwards, so a refused token is reported
// as an error event followed by a policy violation close.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.TokenFromRequest(r)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.settings, h.log)
	session := h.gateway.Open(client)
	identity, err := session.Authenticate(token)
	if err != nil {
		client.Refuse(err, errorEvent(err))
		return
	}
	if !h.track(client) {
		session.Close()
		client.Refuse(errors.ErrSessionClosed, errorEvent(errors.ErrSessionClosed))
		return
	}
	defer h.untrack(client)

	h.log.Info("Live connection opened", "user_id", identity.ID, "connection_id", session.ConnectionID())

	written := make(chan struct{})
	go func() {
		defer close(written)
		client.WritePump()
	}()
	client.ReadPump(r.Context(), session)

	session.Close()
	_ = client.Close()
	<-written
	h.log.Info("Live connection closed", "user_id", identity.ID, "connection_id", session.ConnectionID())
}

// Shutdown refuses new connections, closes the open ones and waits for their pumps.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.log.Info("Live connections closed", "count", len(clients))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of connections whose pumps are running.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Handler) track(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.clients[client] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	h.wg.Done()
}

func errorEvent(err error) event.Error {
	return event.Error{Code: errors.ErrorCode(err), Message: errors.PublicMessage(err)}
}
