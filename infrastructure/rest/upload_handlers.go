package rest

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/dto"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

const uploadField = "file"

// upload streams the first "file" part of a multipart body into the file store.
func (a *API) upload(w http.ResponseWriter, r *http.Request, identity chat.Identity) {
	reader, err := r.MultipartReader()
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: multipart body expected: %v", errors.ErrValidation, err))
		return
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			a.writeError(w, r, fmt.Errorf("%w: %q field is missing", errors.ErrValidation, uploadField))
			return
		}
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: malformed multipart body: %v", errors.ErrValidation, err))
			return
		}
		if part.FormName() != uploadField {
			continue
		}

		stored, err := a.files.Save(part.FileName(), part)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.log.Info("File uploaded", "user_id", identity.ID, "url", stored.URL, "mime_type", stored.MimeType, "size", stored.Size)
		a.writeJSON(w, http.StatusCreated, dto.Upload{
			FileURL:  stored.URL,
			FileName: stored.Name,
			FileType: stored.MimeType,
			FileSize: stored.Size,
		})
		return
	}
}

// download serves a stored file with the type sniffed from its content, never from its name.
func (a *API) download(w http.ResponseWriter, r *http.Request) {
	path, err := a.files.Path(r.PathValue("name"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", detected.String())
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
