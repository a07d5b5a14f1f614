//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
)

type IAuthService interface {
	Register(username, email, password string) (auth.Credentials, error)
	Login(email, password string) (auth.Credentials, error)
}

// TokenIssuer signs identity tokens for authenticated users.
type TokenIssuer interface {
	GenerateToken(identity chat.Identity) (string, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         TokenIssuer
}

func NewAuthService(repo repositories.IUserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, email, password string) (auth.Credentials, error) {
	// 1. Validate business rules before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}); err != nil {
		return auth.Credentials{}, err
	}

	// 2. The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user, ErrUserAlreadyExists propagates when the email is taken
	userID, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return auth.Credentials{}, err
	}

	// 4. Generate the initial session token
	return s.issue(chat.Identity{ID: chat.UserID(userID), Username: username})
}

func (s *AuthService) Login(email, password string) (auth.Credentials, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return auth.Credentials{}, err
	}

	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Same error as a wrong password to prevent user enumeration
		return auth.Credentials{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return auth.Credentials{}, errors.ErrInvalidCredentials
	}

	return s.issue(chat.Identity{ID: chat.UserID(user.ID), Username: user.Username})
}

func (s *AuthService) issue(identity chat.Identity) (auth.Credentials, error) {
	token, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return auth.Credentials{Token: token, UserID: identity.ID, Username: identity.Username}, nil
}
