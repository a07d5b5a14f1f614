package auth

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MyPasswordIsV3ry$afe"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "not-a-hash")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{"Valid request", RegisterRequest{"alice", "test@example.com", "ComplexPass123!"}, nil},
		{"Username too short", RegisterRequest{"al", "test@example.com", "ComplexPass123!"}, errors.ErrValidation},
		{"Username too long", RegisterRequest{strings.Repeat("a", 33), "test@example.com", "ComplexPass123!"}, errors.ErrValidation},
		{"Invalid email", RegisterRequest{"alice", "notanemail", "ComplexPass123!"}, errors.ErrValidation},
		{"Password too short", RegisterRequest{"alice", "test@example.com", "Short1!"}, errors.ErrValidation},
		{"Missing digit", RegisterRequest{"alice", "test@example.com", "NoDigitPass!"}, errors.ErrInvalidPassword},
		{"Missing special char", RegisterRequest{"alice", "test@example.com", "NoSpecialChar123"}, errors.ErrInvalidPassword},
		{"Missing uppercase", RegisterRequest{"alice", "test@example.com", "nouppercase123!"}, errors.ErrInvalidPassword},
		{"Password too long", RegisterRequest{"alice", "test@example.com", strings.Repeat("a", 73)}, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr == nil {
				req.NoError(err)
			} else {
				req.ErrorIs(err, tt.wantErr)
			}
		})
	}
}

func TestLoginValidation(t *testing.T) {
	req := require.New(t)
	req.NoError(ValidateLogin(LoginRequest{Email: "bob@example.com", Password: "x"}))
	req.ErrorIs(ValidateLogin(LoginRequest{Email: "bob@example.com"}), errors.ErrValidation)
	req.ErrorIs(ValidateLogin(LoginRequest{Email: "bob", Password: "x"}), errors.ErrValidation)
}

func TestTokenManager_Verify(t *testing.T) {
	t.Run("should return the identity a token was issued for", func(t *testing.T) {
		req := require.New(t)
		// Given a manager and a token issued for alice
		manager := NewTokenManager("secret-for-tests", time.Hour)
		token, err := manager.GenerateToken(chat.Identity{ID: "u-1", Username: "alice"})
		req.NoError(err)

		// When the token is verified
		identity, err := manager.Verify(token)

		// Then the identity is restored
		req.NoError(err)
		req.Equal(chat.Identity{ID: "u-1", Username: "alice"}, identity)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		token, err := NewTokenManager("other-secret", time.Hour).GenerateToken(chat.Identity{ID: "u-1"})
		req.NoError(err)

		_, err = NewTokenManager("secret-for-tests", time.Hour).Verify(token)

		req.ErrorIs(err, errors.ErrAuth)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		// Given a token issued two hours ago with a one hour lifetime
		manager := NewTokenManager("secret-for-tests", time.Hour)
		manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := manager.GenerateToken(chat.Identity{ID: "u-1"})
		req.NoError(err)

		// When verified now
		manager.now = time.Now
		_, err = manager.Verify(token)

		// Then it is refused
		req.ErrorIs(err, errors.ErrAuth)
	})

	t.Run("should reject an empty or malformed token", func(t *testing.T) {
		req := require.New(t)
		manager := NewTokenManager("secret-for-tests", time.Hour)

		_, err := manager.Verify("")
		req.ErrorIs(err, errors.ErrAuth)

		_, err = manager.Verify("invalid-token-string")
		req.ErrorIs(err, errors.ErrAuth)
	})

	t.Run("should reject a token signed with another algorithm", func(t *testing.T) {
		req := require.New(t)
		claims := &CustomClaims{UserID: "u-1"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret-for-tests"))
		req.NoError(err)

		_, err = NewTokenManager("secret-for-tests", time.Hour).Verify(token)

		req.ErrorIs(err, errors.ErrAuth)
	})
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"Bearer header", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"Lower case scheme", map[string]string{"Authorization": "bearer abc"}, "abc"},
		{"Custom header", map[string]string{"x-auth-token": "xyz"}, "xyz"},
		{"Bearer wins over custom header", map[string]string{"Authorization": "Bearer abc", "x-auth-token": "xyz"}, "abc"},
		{"Other scheme is ignored", map[string]string{"Authorization": "Basic abc"}, ""},
		{"No header", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest(http.MethodGet, "/chats", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			req.Equal(tt.want, TokenFromRequest(r))
		})
	}
}
