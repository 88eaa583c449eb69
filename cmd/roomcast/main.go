package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"roomcast/auth"
	"roomcast/domain/event"
	"roomcast/internal"
	"roomcast/moderation"
	"roomcast/repositories"
	"roomcast/runtime"
	"roomcast/runtime/workers"
	"roomcast/search"
	"roomcast/server"
	"roomcast/services"
	"roomcast/transport/ws"
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
		fmt.Fprintf(os.Stderr, "roomcast terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes every component and manages the server lifecycle. Kept
// out of main so defers run before the process exits and the wiring stays
// testable.
func run() (int, error) {
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// Storage: BadgerDB for documents, Bluge for the search projection.
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
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

	// Moderation dictionary and automaton.
	dictionary, err := moderation.LoadDictionary()
	if err != nil {
		return exitRuntime, fmt.Errorf("loading censored words failed: %w", err)
	}
	logger.Info(fmt.Sprintf("%d censored words loaded [%s]",
		len(dictionary.Words), strings.Join(dictionary.Languages, ",")))

	moderator, err := moderation.NewModerator(dictionary.Words, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("building moderator failed: %w", err)
	}

	// Repositories and live presence.
	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	registry := runtime.NewRegistry(logger)

	// Auth.
	tokenManager := auth.NewTokenManager(config.JWTSecret, config.JWTIssuer, config.JWTAudience, config.TokenTTL)
	authenticator := auth.NewAuthenticator(tokenManager, userRepository, config.AuthTimeout, logger)

	// Event pipeline: the registry broadcasts to live members directly;
	// this channel feeds the permanent sinks behind the fanout worker.
	events := make(chan event.DomainEvent, config.BufferSize)
	messageIndex := search.NewMessageIndex(blugeWriter, logger)
	indexSink := search.NewIndexSink(messageIndex, logger)

	// Services.
	authService := services.NewAuthService(userRepository, tokenManager, logger)
	roomService := services.NewRoomService(roomRepository, registry, logger)
	messageService := services.NewMessageService(
		messageRepository, roomRepository, registry, moderator,
		messageIndex, events, config.MaxContentLength, logger)

	// Supervised background workers.
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		workers.NewFanoutWorker(logger, events, config.SinkTimeout, indexSink),
		workers.NewHeartbeatWorker(logger, registry, config.HeartbeatInterval),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go supervisor.Run(ctx)

	// Optional store inspector, development only.
	if config.DebugPort != nil {
		logger.Info("Debug inspector enabled", "port", *config.DebugPort)
		internal.StartDebugServer(db, *config.DebugPort, func() map[string]any {
			rooms, conns := registry.Size()
			return map[string]any{
				"active_rooms":     rooms,
				"open_connections": conns,
			}
		})
	}

	// HTTP surface, websocket route included.
	router := ws.NewRouter(roomService, messageService, logger)
	wsHandler := ws.NewHandler(authenticator, router, roomService, config.ConnectionBufferSize, logger)
	srv := server.NewServer(
		config.Addr(), authenticator,
		authService, roomService, messageService,
		wsHandler, logger)

	if err := srv.Run(ctx); err != nil {
		return exitRuntime, fmt.Errorf("server error: %w", err)
	}

	logger.Info("Shutting down gracefully...")
	supervisor.Stop()
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
