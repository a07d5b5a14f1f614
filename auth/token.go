package auth

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-relay"

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Credentials is what a client keeps after a successful register or login.
type Credentials struct {
	Token    string
	UserID   chat.UserID
	Username string
}

// TokenManager issues and verifies identity tokens signed with a shared secret.
type TokenManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration, now: time.Now}
}

// GenerateToken creates a signed JWT for a specific user.
func (m *TokenManager) GenerateToken(identity chat.Identity) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		UserID:   string(identity.ID),
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	// HS256 (HMAC with SHA256)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func (m *TokenManager) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Verify turns a token into the identity it was issued for.
func (m *TokenManager) Verify(token string) (chat.Identity, error) {
	if token == "" {
		return chat.Identity{}, fmt.Errorf("%w: token is missing", errors.ErrAuth)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	if claims.UserID == "" {
		return chat.Identity{}, fmt.Errorf("%w: token carries no user", errors.ErrAuth)
	}
	return chat.Identity{ID: chat.UserID(claims.UserID), Username: claims.Username}, nil
}
