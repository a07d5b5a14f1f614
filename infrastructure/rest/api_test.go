package rest

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/dto"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var createdAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestAuthRoutes(t *testing.T) {
	t.Run("should register and return credentials", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.accounts.EXPECT().Register("alice", "alice@example.com", "ComplexPass123!").
			Return(auth.Credentials{Token: "tok", UserID: "u-1", Username: "alice"}, nil)

		w := api.do(t, http.MethodPost, "/auth/register", registerRequest{
			Username: "alice", Email: "alice@example.com", Password: "ComplexPass123!",
		}, "")

		req.Equal(http.StatusCreated, w.Code)
		req.Equal(dto.Credentials{Token: "tok", UserID: "u-1", Username: "alice"}, decodeBody[dto.Credentials](t, w))
	})

	t.Run("should map a taken email to conflict", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.accounts.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(auth.Credentials{}, errors.ErrUserAlreadyExists)

		w := api.do(t, http.MethodPost, "/auth/register", registerRequest{Username: "alice"}, "")

		req.Equal(http.StatusConflict, w.Code)
	})

	t.Run("should refuse a malformed body before reaching the service", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.do(t, http.MethodPost, "/auth/register", "{not json", "")

		req.Equal(http.StatusBadRequest, w.Code)
		req.Equal("validation", decodeBody[dto.Error](t, w).Code)
	})

	t.Run("should map bad credentials to unauthorized", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.accounts.EXPECT().Login("alice@example.com", "wrong").Return(auth.Credentials{}, errors.ErrInvalidCredentials)

		w := api.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "alice@example.com", Password: "wrong"}, "")

		req.Equal(http.StatusUnauthorized, w.Code)
	})
}

func TestAuthentication(t *testing.T) {
	t.Run("should refuse requests without a token", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.do(t, http.MethodGet, "/chats", nil, "")

		req.Equal(http.StatusUnauthorized, w.Code)
		req.Equal("unauthorized", decodeBody[dto.Error](t, w).Code)
	})

	t.Run("should refuse an invalid token", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.do(t, http.MethodPost, "/messages", postMessageRequest{ChatRoom: "r1", Content: "hi"}, "forged")

		req.Equal(http.StatusUnauthorized, w.Code)
	})
}

func TestChatRoutes(t *testing.T) {
	summary := chat.RoomSummary{
		Room:         chat.Room{ID: "r1", IsPrivate: true, Participants: []chat.UserID{"alice", "bob"}, CreatedAt: createdAt},
		Participants: []chat.Identity{alice, {ID: "bob", Username: "Bob"}},
	}

	t.Run("should list the rooms of the caller", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().ListRooms(chat.UserID("alice")).Return([]chat.RoomSummary{summary}, nil)

		w := api.do(t, http.MethodGet, "/chats", nil, aliceToken)

		req.Equal(http.StatusOK, w.Code)
		rooms := decodeBody[[]dto.ChatRoom](t, w)
		req.Len(rooms, 1)
		req.Equal("r1", rooms[0].ID)
		req.Equal([]dto.User{{ID: "alice", Username: "Alice"}, {ID: "bob", Username: "Bob"}}, rooms[0].Participants)
	})

	t.Run("should answer an empty list rather than null", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().ListRooms(chat.UserID("alice")).Return(nil, nil)

		w := api.do(t, http.MethodGet, "/chats", nil, aliceToken)

		req.Equal(http.StatusOK, w.Code)
		req.JSONEq("[]", w.Body.String())
	})

	t.Run("should create a room for the caller", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().CreateRoom(gomock.Any(), chat.UserID("alice"), chat.CreateRoomCommand{
			IsPrivate:    true,
			Participants: []chat.UserID{"bob"},
		}).Return(summary, nil)

		w := api.do(t, http.MethodPost, "/chats", createChatRequest{IsPrivate: true, Participants: []string{" bob "}}, aliceToken)

		req.Equal(http.StatusCreated, w.Code)
		req.Equal("r1", decodeBody[dto.ChatRoom](t, w).ID)
	})

	t.Run("should refuse empty participant ids", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.do(t, http.MethodPost, "/chats", createChatRequest{Participants: []string{""}}, aliceToken)

		req.Equal(http.StatusBadRequest, w.Code)
	})

	t.Run("should read one room by id", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().GetRoom(chat.RoomID("r1"), chat.UserID("alice")).Return(summary, nil)

		w := api.do(t, http.MethodGet, "/chats/r1", nil, aliceToken)

		req.Equal(http.StatusOK, w.Code)
		req.True(decodeBody[dto.ChatRoom](t, w).IsPrivate)
	})

	t.Run("should map a foreign room to forbidden", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().GetRoom(chat.RoomID("secret"), chat.UserID("alice")).
			Return(chat.RoomSummary{}, fmt.Errorf("%w: alice is not a participant", errors.ErrForbidden))

		w := api.do(t, http.MethodGet, "/chats/secret", nil, aliceToken)

		req.Equal(http.StatusForbidden, w.Code)
	})

	t.Run("should hide the details of server errors", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().ListRooms(gomock.Any()).Return(nil, fmt.Errorf("badger: disk on fire"))

		w := api.do(t, http.MethodGet, "/chats", nil, aliceToken)

		req.Equal(http.StatusInternalServerError, w.Code)
		req.Equal(dto.Error{Code: "internal", Message: "server error"}, decodeBody[dto.Error](t, w))
	})
}

func TestMessageRoutes(t *testing.T) {
	message := chat.MessageView{
		Message: chat.Message{ID: "m1", Seq: 1, RoomID: "r1", SenderID: "alice", Content: "hi", CreatedAt: createdAt},
		Sender:  alice,
	}

	t.Run("should list the history of a room", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().GetMessages(chat.RoomID("r1"), chat.UserID("alice")).Return([]chat.MessageView{message}, nil)

		w := api.do(t, http.MethodGet, "/chats/r1/messages", nil, aliceToken)

		req.Equal(http.StatusOK, w.Code)
		messages := decodeBody[[]dto.Message](t, w)
		req.Equal([]string{"hi"}, lo.Map(messages, func(m dto.Message, _ int) string { return m.Content }))
	})

	t.Run("should search with the query terms", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().SearchMessages(gomock.Any(), chat.UserID("alice"), chat.SearchMessagesCommand{Room: "r1", Terms: "hello world", Limit: 5}).
			Return([]chat.MessageView{message}, nil)

		w := api.do(t, http.MethodGet, "/chats/r1/messages/search?q=hello+--limit+5+world", nil, aliceToken)

		req.Equal(http.StatusOK, w.Code)
		req.Len(decodeBody[[]dto.Message](t, w), 1)
	})

	t.Run("should post as the authenticated identity", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)
		api.chats.EXPECT().PostMessage(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd chat.PostMessageCommand) (chat.MessageView, error) {
				req.Equal(chat.PostMessageCommand{
					Room:       "r1",
					SenderID:   "alice",
					Content:    "look",
					Attachment: &chat.Attachment{URL: "/uploads/1-a.png", Name: "a.png", MimeType: "image/png"},
				}, cmd)
				return message, nil
			})

		w := api.do(t, http.MethodPost, "/messages", postMessageRequest{
			ChatRoom: "r1", Content: "look", FileURL: "/uploads/1-a.png", FileName: "a.png", FileType: "image/png",
		}, aliceToken)

		req.Equal(http.StatusCreated, w.Code)
		req.Equal("m1", decodeBody[dto.Message](t, w).ID)
	})

	t.Run("should require the room", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.do(t, http.MethodPost, "/messages", postMessageRequest{Content: "hi"}, aliceToken)

		req.Equal(http.StatusBadRequest, w.Code)
	})
}

func TestUploadRoutes(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	t.Run("should store an allowed file and serve it back", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		// Given a png uploaded under an html name
		w := api.upload(t, "file", "photo.html", png)
		req.Equal(http.StatusCreated, w.Code)
		upload := decodeBody[dto.Upload](t, w)
		req.Equal("image/png", upload.FileType)
		req.Equal(int64(len(png)), upload.FileSize)
		req.True(strings.HasPrefix(upload.FileURL, "/uploads/"))

		// When it is downloaded
		w = api.do(t, http.MethodGet, upload.FileURL, nil, "")

		// Then its type comes from its content
		req.Equal(http.StatusOK, w.Code)
		req.Equal("image/png", w.Header().Get("Content-Type"))
		req.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
		req.Equal(png, w.Body.Bytes())
	})

	t.Run("should refuse a type outside the allow-list", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.upload(t, "file", "page.txt", []byte("<html><body>hi</body></html>"))

		req.Equal(http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("should refuse a file above the limit", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.upload(t, "file", "big.txt", []byte(strings.Repeat("a", 2048)))

		req.Equal(http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("should require the file field", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		w := api.upload(t, "attachment", "a.png", png)

		req.Equal(http.StatusBadRequest, w.Code)
	})

	t.Run("should not find unknown or escaping names", func(t *testing.T) {
		req := require.New(t)
		api := newTestAPI(t)

		req.Equal(http.StatusNotFound, api.do(t, http.MethodGet, "/uploads/missing.png", nil, "").Code)
		req.Equal(http.StatusNotFound, api.do(t, http.MethodGet, "/uploads/.hidden", nil, "").Code)
	})
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil, "")

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"ok"}`, w.Body.String())
}
