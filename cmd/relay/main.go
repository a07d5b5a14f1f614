package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Returning instead of exiting lets the deferred closes run.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env file is not an error, the environment may already be set
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories
	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = messageRepository.Close()
	}()
	roomRepository := repositories.NewRoomRepository(db, logger)
	userRepository := repositories.NewUserRepository(db)
	messageIndex := repositories.NewMessageIndex(blugeWriter, logger)

	// 4. Core services
	indexQueue := make(chan repositories.DiskMessage, config.IndexBufferSize)
	directory := services.NewChatDirectory(roomRepository, logger)
	messageLog := services.NewMessageLog(
		messageRepository, messageIndex, directory,
		config.MaxContentLength, config.SearchLimit, logger,
	).WithIndexQueue(indexQueue)

	if config.EnableModeration {
		moderator, err := buildModerator(charReplacement, logger)
		if err != nil {
			return exitRuntime, err
		}
		messageLog.WithModerator(moderator)
	}

	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	identities := services.NewIdentityResolver(userRepository, logger)
	registry := runtime.NewRegistry(directory, logger)
	router := runtime.NewRouter(registry, config.DeliveryTimeout, config.BroadcastUnroutedMessages, logger)
	chatService := services.NewChatService(directory, messageLog, identities, router, logger)
	authService := services.NewAuthService(userRepository, tokens)
	gateway := runtime.NewGateway(tokens, registry, chatService, logger)

	files, err := storage.NewFileStore(config.UploadDir, config.MaxUploadSize, logger)
	if err != nil {
		return exitRuntime, err
	}

	// 5. Background workers
	// Workers outlive the signal context so the indexer keeps draining while connections close
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(workers.NewIndexerWorker(messageIndex, indexQueue, logger))
	// A zero interval disables the heartbeat
	if config.HeartbeatInterval > 0 {
		heartbeat, err := workers.NewHeartbeatWorker(logger, registry, config.HeartbeatInterval)
		if err != nil {
			return exitRuntime, fmt.Errorf("heartbeat setup failed: %w", err)
		}
		supervisor.Add(heartbeat)
	}
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(workerCtx)
	}()

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. HTTP & websocket server
	live := ws.NewHandler(gateway, ws.NewOriginPolicy(config.Origins(), logger), ws.Settings{
		BufferSize:     config.ConnectionBufferSize,
		WriteTimeout:   config.WriteTimeout,
		PongTimeout:    config.PongTimeout,
		MaxMessageSize: config.MaxMessageSize,
	}, logger)
	api := rest.NewAPI(chatService, authService, tokens, files, live, logger)

	address := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	server := rest.NewServer(address, api.Routes())
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// Requests first, then live connections, then the workers that serve them
	logger.Info("Shutting down gracefully...")
	_ = rest.Shutdown(server, config.ShutdownTimeout, logger)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := live.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Live connections did not close in time", "error", err)
	}
	stopWorkers()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

func buildModerator(charReplacement rune, logger *slog.Logger) (*moderation.Moderator, error) {
	censored, err := moderation.LoadCensored()
	if err != nil {
		return nil, fmt.Errorf("loading censored words: %w", err)
	}
	logger.Info("Moderation enabled", "languages", censored.Languages, "words", len(censored.Words))
	return moderation.NewModerator(censored.Words, charReplacement, logger)
}
