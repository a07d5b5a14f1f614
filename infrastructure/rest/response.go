package rest

import (
	"chat-relay/errors"
	"chat-relay/infrastructure/dto"
	"encoding/json"
	"fmt"
	"net/http"
)

// maxBodySize bounds JSON request bodies; uploads are streamed and bounded by the file store.
const maxBodySize = 1 << 20

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Debug("Unable to write response", "error", err)
	}
}

// writeError maps err to its status. Server errors are logged and answered with a generic message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	a.writeJSON(w, status, dto.Error{Code: errors.ErrorCode(err), Message: errors.PublicMessage(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", errors.ErrValidation, err)
	}
	return nil
}
