package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = fmt.Errorf("validation error")
	ErrForbidden  = fmt.Errorf("forbidden")
	ErrNotFound   = fmt.Errorf("not found")
	ErrAuth       = fmt.Errorf("authentication failed")
	ErrDelivery   = fmt.Errorf("delivery failure")

	ErrSessionClosed      = fmt.Errorf("session closed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrUnsupportedFileType = fmt.Errorf("unsupported file type")
	ErrFileTooLarge        = fmt.Errorf("file too large")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// MapToHTTPStatus translates a domain error into the status returned by the REST surface.
// Anything unknown is a server error; its details must not reach the client.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case goerrors.Is(err, ErrValidation), goerrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case goerrors.Is(err, ErrAuth), goerrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case goerrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case goerrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case goerrors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case goerrors.Is(err, ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the short machine-readable code sent in live error events.
func ErrorCode(err error) string {
	switch {
	case goerrors.Is(err, ErrValidation):
		return "validation"
	case goerrors.Is(err, ErrForbidden):
		return "forbidden"
	case goerrors.Is(err, ErrNotFound):
		return "not_found"
	case goerrors.Is(err, ErrAuth):
		return "unauthorized"
	case goerrors.Is(err, ErrSessionClosed):
		return "closed"
	default:
		return "internal"
	}
}

// PublicMessage returns the text safe to show a client for err.
func PublicMessage(err error) string {
	if MapToHTTPStatus(err) == http.StatusInternalServerError {
		return "server error"
	}
	return err.Error()
}
