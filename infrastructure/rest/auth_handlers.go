package rest

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/dto"
	"net/http"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	credentials, err := a.accounts.Register(body.Username, body.Email, body.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.Info("User registered", "user_id", credentials.UserID)
	a.writeJSON(w, http.StatusCreated, toCredentials(credentials))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	credentials, err := a.accounts.Login(body.Email, body.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toCredentials(credentials))
}

func toCredentials(c auth.Credentials) dto.Credentials {
	return dto.Credentials{Token: c.Token, UserID: string(c.UserID), Username: c.Username}
}
