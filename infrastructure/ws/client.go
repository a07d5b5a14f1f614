package ws

import (
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Settings tunes every live connection.
type Settings struct {
	BufferSize     int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

// pingPeriod must stay below the pong timeout so a healthy peer always answers in time.
func (s Settings) pingPeriod() time.Duration {
	return s.PongTimeout * 9 / 10
}

// InboundHandler receives the decoded frames of one connection.
type InboundHandler interface {
	Handle(ctx context.Context, in event.Inbound) error
	Reject(ctx context.Context, cause event.Kind, err error)
}

// Client is the event sink of one websocket connection.
// Consume only enqueues; a single write pump owns every write on the socket.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	settings Settings
	addr     string
	log      *slog.Logger
}

func NewClient(conn *websocket.Conn, settings Settings, log *slog.Logger) *Client {
	conn.SetReadLimit(settings.MaxMessageSize)
	return &Client{
		conn:     conn,
		send:     make(chan []byte, settings.BufferSize),
		done:     make(chan struct{}),
		settings: settings,
		addr:     conn.RemoteAddr().String(),
		log:      log,
	}
}

// Consume encodes evt and queues it for the write pump.
// It blocks while the outbox is full, until ctx is done or the client is closed.
func (c *Client) Consume(ctx context.Context, e event.Outbound) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return apperrors.ErrSessionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return apperrors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close asks the write pump to send a close frame and release the socket. It is idempotent.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// ReadPump decodes frames until the peer goes away or the client is closed.
// Undecodable frames are rejected through handler and never end the connection.
func (c *Client) ReadPump(ctx context.Context, handler InboundHandler) {
	defer c.Close()
	c.setupReadConnection()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		in, kind, err := Decode(frame)
		if err != nil {
			handler.Reject(ctx, kind, err)
			continue
		}
		if err = handler.Handle(ctx, in); err != nil {
			if errors.Is(err, apperrors.ErrSessionClosed) {
				return
			}
			c.log.Debug("Event rejected", "addr", c.addr, "kind", kind, "error", err)
		}
	}
}

// WritePump drains the outbox and keeps the connection alive with pings.
// It returns once the client is closed or a write fails, and always closes the socket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.Close()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message := <-c.send:
		return c.writeTextMessage(message)
	case <-ticker.C:
		return c.handlePing()
	case <-c.done:
		c.writeCloseMessage(websocket.CloseNormalClosure, "")
		return false
	}
}

// Refuse reports err to the peer and closes the connection with a policy violation.
// It is used before the pumps are started.
func (c *Client) Refuse(err error, evt event.Error) {
	if payload, encodeErr := Encode(evt); encodeErr == nil {
		c.writeTextMessage(payload)
	}
	c.writeCloseMessage(websocket.ClosePolicyViolation, evt.Code)
	c.closeConnection()
	c.log.Debug("Live connection refused", "addr", c.addr, "error", err)
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.settings.PongTimeout)); err != nil {
		c.log.Debug("Error setting initial read deadline", "addr", c.addr, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongTimeout))
	})
}

func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Frame exceeded maximum size", "addr", c.addr, "max_size", c.settings.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("Peer disconnected", "addr", c.addr, "error", err)
	case errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed):
		c.log.Debug("Connection closed", "addr", c.addr, "error", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected websocket close", "addr", c.addr, "error", err)
	default:
		c.log.Debug("Websocket read error", "addr", c.addr, "error", err)
	}
}

func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
		c.log.Debug("Error setting write deadline", "addr", c.addr, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.log.Debug("Error writing message", "addr", c.addr, "error", err)
		return false
	}
	return true
}

func (c *Client) writeCloseMessage(code int, text string) {
	deadline := time.Now().Add(c.settings.WriteTimeout)
	message := websocket.FormatCloseMessage(code, text)
	if err := c.conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error writing close message", "addr", c.addr, "error", err)
	}
}

func (c *Client) handlePing() bool {
	deadline := time.Now().Add(c.settings.WriteTimeout)
	if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		c.log.Debug("Error writing ping", "addr", c.addr, "error", err)
		return false
	}
	return true
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error closing connection", "addr", c.addr, "error", err)
	}
}

func isExpectedCloseError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
