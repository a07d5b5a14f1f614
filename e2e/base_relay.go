package e2e

import (
	"bytes"
	"chat-relay/infrastructure/dto"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// Frame is the envelope of every live event.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Register creates a fresh account; emails are unique per run.
func (s *BaseRelaySuite) Register(username string) dto.Credentials {
	var credentials dto.Credentials
	status := s.Call(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s-%s@e2e.test", username, uuid.NewString()[:8]),
		"password": "E2e-Password-123!",
	}, &credentials)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().NotEmpty(credentials.Token)
	return credentials
}

// Call sends a JSON request and decodes the JSON answer into out when it is not nil.
func (s *BaseRelaySuite) Call(method, path, token string, body, out any) int {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	r, err := http.NewRequest(method, "http://"+s.Config.RelayAddr+path, reader)
	s.Require().NoError(err)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(r)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	s.T().Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("RESPONSE:\n%s", data)
	}
	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.Unmarshal(data, out))
	}
	return resp.StatusCode
}

// Connect opens a live connection authenticated with token.
func (s *BaseRelaySuite) Connect(token string) *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: s.Config.RelayAddr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *BaseRelaySuite) Send(conn *websocket.Conn, kind string, payload any) {
	s.Require().NoError(conn.WriteJSON(map[string]any{"type": kind, "payload": payload}))
}

// Expect reads frames until one of the given type arrives.
func (s *BaseRelaySuite) Expect(conn *websocket.Conn, kind string) Frame {
	deadline := time.Now().Add(5 * time.Second)
	s.Require().NoError(conn.SetReadDeadline(deadline))
	for {
		var frame Frame
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for %s", kind)
		if s.Config.DebugJSON {
			s.T().Logf("FRAME %s: %s", frame.Type, strings.TrimSpace(string(frame.Payload)))
		}
		if frame.Type == kind {
			return frame
		}
	}
}
