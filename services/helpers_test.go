package services

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/repositories"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db         *badger.DB
	users      repositories.IUserRepository
	index      *repositories.MessageIndex
	directory  *ChatDirectory
	messageLog *MessageLog
	identities *IdentityResolver
	log        *slog.Logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)

	log := discardLogger()
	messages, err := repositories.NewMessageRepository(db, log, nil)
	req.NoError(err)
	t.Cleanup(func() {
		_ = messages.Close()
		_ = writer.Close()
		_ = db.Close()
	})

	users := repositories.NewUserRepository(db)
	index := repositories.NewMessageIndex(writer, log)
	directory := NewChatDirectory(repositories.NewRoomRepository(db, log), log)
	return &testEnv{
		db:         db,
		users:      users,
		index:      index,
		directory:  directory,
		messageLog: NewMessageLog(messages, index, directory, 4000, 20, log),
		identities: NewIdentityResolver(users, log),
		log:        log,
	}
}

// createUser stores an account and returns its id.
func (e *testEnv) createUser(t *testing.T, username string) chat.UserID {
	t.Helper()
	id, err := e.users.CreateUser(username, username+"@example.com", "hash")
	require.NoError(t, err)
	return chat.UserID(id)
}

func newTestTokens() *auth.TokenManager {
	return auth.NewTokenManager("secret-for-tests", time.Hour)
}
