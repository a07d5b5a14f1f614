// Package rest exposes the request/response surface of the relay as JSON over HTTP.
package rest

import (
	"chat-relay/contract"
	"chat-relay/services"
	"chat-relay/storage"
	"io"
	"log/slog"
	"net/http"
)

// FileStore keeps uploaded attachments.
type FileStore interface {
	Save(originalName string, r io.Reader) (storage.StoredFile, error)
	Path(name string) (string, error)
}

type API struct {
	chats    services.IChatService
	accounts services.IAuthService
	verifier contract.TokenVerifier
	files    FileStore
	live     http.Handler
	log      *slog.Logger
}

// NewAPI builds the REST handlers. live serves GET /ws and may be nil.
func NewAPI(
	chats services.IChatService,
	accounts services.IAuthService,
	verifier contract.TokenVerifier,
	files FileStore,
	live http.Handler,
	log *slog.Logger) *API {
	return &API{
		chats:    chats,
		accounts: accounts,
		verifier: verifier,
		files:    files,
		live:     live,
		log:      log,
	}
}

func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", a.register)
	mux.HandleFunc("POST /auth/login", a.login)

	mux.HandleFunc("GET /chats", a.authenticated(a.listChats))
	mux.HandleFunc("POST /chats", a.authenticated(a.createChat))
	mux.HandleFunc("GET /chats/{id}", a.authenticated(a.getChat))
	mux.HandleFunc("GET /chats/{id}/messages", a.authenticated(a.listMessages))
	mux.HandleFunc("GET /chats/{id}/messages/search", a.authenticated(a.searchMessages))
	mux.HandleFunc("POST /messages", a.authenticated(a.postMessage))

	mux.HandleFunc("POST /upload", a.authenticated(a.upload))
	mux.HandleFunc("GET "+storage.URLPrefix+"{name}", a.download)

	mux.HandleFunc("GET /health", a.health)
	if a.live != nil {
		mux.Handle("GET /ws", a.live)
	}

	return a.recoverer(a.logRequests(mux))
}
