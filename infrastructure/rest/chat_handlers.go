package rest

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/domain/search"
	"chat-relay/infrastructure/dto"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

type createChatRequest struct {
	Name         *string  `json:"name" validate:"omitempty,max=100"`
	IsPrivate    bool     `json:"isPrivate"`
	Participants []string `json:"participants" validate:"dive,required"`
}

type postMessageRequest struct {
	Content  string `json:"content"`
	ChatRoom string `json:"chatRoom" validate:"required"`
	FileURL  string `json:"fileUrl" validate:"omitempty,uri"`
	FileName string `json:"fileName" validate:"omitempty,max=255"`
	FileType string `json:"fileType" validate:"omitempty,max=255"`
}

func (a *API) listChats(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	summaries, err := a.chats.ListRooms(identity.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, dto.FromRoomSummaries(summaries))
}

func (a *API) createChat(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	var body createChatRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := auth.ValidateStruct(body); err != nil {
		a.writeError(w, r, err)
		return
	}
	summary, err := a.chats.CreateRoom(r.Context(), identity.ID, chat.CreateRoomCommand{
		Name:      body.Name,
		IsPrivate: body.IsPrivate,
		Participants: lo.Map(body.Participants, func(id string, _ int) chat.UserID {
			return chat.UserID(strings.TrimSpace(id))
		}),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, dto.FromRoomSummary(summary))
}

func (a *API) getChat(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	summary, err := a.chats.GetRoom(chat.RoomID(r.PathValue("id")), identity.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, dto.FromRoomSummary(summary))
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	views, err := a.chats.GetMessages(chat.RoomID(r.PathValue("id")), identity.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, dto.FromMessageViews(views))
}

func (a *API) searchMessages(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	query := search.Parse(r.URL.Query().Get("q"))
	views, err := a.chats.SearchMessages(r.Context(), identity.ID, chat.SearchMessagesCommand{
		Room:  chat.RoomID(r.PathValue("id")),
		Terms: query.Terms,
		Limit: query.Limit,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, dto.FromMessageViews(views))
}

func (a *API) postMessage(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	var body postMessageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := auth.ValidateStruct(body); err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.chats.PostMessage(r.Context(), chat.PostMessageCommand{
		Room:       chat.RoomID(strings.TrimSpace(body.ChatRoom)),
		SenderID:   identity.ID,
		Content:    body.Content,
		Attachment: dto.ToAttachment(body.FileURL, body.FileName, body.FileType),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, dto.FromMessageView(view))
}
