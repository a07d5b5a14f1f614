package rest

import (
	"bytes"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/storage"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const aliceToken = "alice-token"

var alice = chat.Identity{ID: "alice", Username: "Alice"}

type testAPI struct {
	handler  http.Handler
	chats    *mocks.MockIChatService
	accounts *mocks.MockIAuthService
	files    *storage.FileStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	verifier := mocks.NewMockTokenVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any()).DoAndReturn(func(token string) (chat.Identity, error) {
		if token == aliceToken {
			return alice, nil
		}
		return chat.Identity{}, fmt.Errorf("%w: invalid token", errors.ErrAuth)
	}).AnyTimes()

	files, err := storage.NewFileStore(t.TempDir(), 1024, log)
	require.NoError(t, err)

	chats := mocks.NewMockIChatService(ctrl)
	accounts := mocks.NewMockIAuthService(ctrl)
	api := NewAPI(chats, accounts, verifier, files, nil, log)
	return &testAPI{handler: api.Routes(), chats: chats, accounts: accounts, files: files}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func (a *testAPI) upload(t *testing.T, field, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	r.Header.Set("x-auth-token", aliceToken)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var body T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
