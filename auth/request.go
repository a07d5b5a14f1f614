package auth

import (
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	authTokenHeader     = "x-auth-token"
	bearerPrefix        = "Bearer "
)

// TokenFromRequest reads the identity token from the Authorization bearer header,
// falling back to the x-auth-token header.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get(authorizationHeader); len(header) > len(bearerPrefix) &&
		strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return strings.TrimSpace(r.Header.Get(authTokenHeader))
}
