package services

import (
	"chat-relay/domain/chat"
	apperrors "chat-relay/errors"
	"chat-relay/repositories"
	"errors"
	"log/slog"

	"github.com/samber/lo"
)

// IdentityResolver turns user ids into displayable identities.
type IdentityResolver struct {
	users repositories.IUserRepository
	log   *slog.Logger
}

func NewIdentityResolver(users repositories.IUserRepository, log *slog.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, log: log}
}

// Resolve never fails: an unknown or unreadable user resolves to an identity without username.
func (r *IdentityResolver) Resolve(id chat.UserID) chat.Identity {
	user, err := r.users.GetUserByID(string(id))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			r.log.Warn("Unable to resolve user", "user_id", id, "error", err)
		}
		return chat.Identity{ID: id}
	}
	return chat.Identity{ID: id, Username: user.Username}
}

func (r *IdentityResolver) ResolveAll(ids []chat.UserID) []chat.Identity {
	return lo.Map(ids, func(id chat.UserID, _ int) chat.Identity {
		return r.Resolve(id)
	})
}
