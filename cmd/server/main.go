package main

import (
	"context"
	"database/sql"
	"fmt"
	"hive-chat/api"
	"hive-chat/auth"
	"hive-chat/contract"
	grpcserver "hive-chat/infrastructure/grpc/server"
	"hive-chat/infrastructure/rest"
	"hive-chat/infrastructure/websocket"
	"hive-chat/internal"
	"hive-chat/repositories"
	"hive-chat/repositories/postgres"
	"hive-chat/runtime"
	"hive-chat/runtime/workers"
	"hive-chat/services"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
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
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

type storage struct {
	messages contract.IMessageStore
	users    contract.IUserDirectory
	close    func()
}

// run wires storage, services and transports, then blocks under supervision
// until a termination signal arrives.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	store, err := openStorage(ctx, log, config)
	if err != nil {
		return exitRuntime, err
	}
	defer store.close()

	// 4. Core
	registry := runtime.NewRegistry()
	chatService := services.NewChatService(log, registry, store.messages, store.users,
		config.SinkTimeout, config.MaxTextLength)
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	if !tokens.Enabled() {
		log.Warn("AUTH_SECRET is empty, identities are not verified")
	}

	// 5. Transports
	gateway := websocket.NewGateway(log, chatService, config.ConnectionBufferSize, config.SinkTimeout, config.AllowedOrigins())
	router := rest.NewRouter(rest.RouterConfig{
		AllowedOrigins:    config.AllowedOrigins(),
		RateLimitRequests: config.RateLimitRequests,
		RateLimitWindow:   config.RateLimitWindow,
	}, rest.NewHandler(log, chatService), gateway, tokens)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
			auth.UnaryInterceptor(tokens),
		),
		grpc.ChainStreamInterceptor(auth.StreamInterceptor(tokens)),
	)
	api.RegisterChatServiceServer(grpcServer, grpcserver.NewChatServer(log, chatService, config.ConnectionBufferSize))

	// 6. Supervision
	// Run blocks until every worker returned after the signal canceled ctx.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(log, httpServer),
		workers.NewGRPCServerWorker(log, fmt.Sprintf("%s:%d", config.Host, config.GrpcPort), grpcServer),
		workers.NewPresenceReporterWorker(log, registry, config.PresenceReportInterval),
	)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return exitOK, nil
}

func openStorage(ctx context.Context, log *slog.Logger, config internal.Config) (storage, error) {
	switch config.StorageDriver {
	case internal.StoragePostgres:
		db, err := postgres.Open(ctx, config.DatabaseURL)
		if err != nil {
			return storage{}, fmt.Errorf("database opening failed: %w", err)
		}
		if err = postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return storage{}, fmt.Errorf("database migration failed: %w", err)
		}
		return storage{
			messages: postgres.NewMessageRepository(db, log),
			users:    postgres.NewUserRepository(db),
			close:    closer(log, "Postgres", db),
		}, nil
	default:
		db, err := badger.Open(buildBadgerOpts(ctx, config, log))
		if err != nil {
			return storage{}, fmt.Errorf("database opening failed: %w", err)
		}
		messages, err := repositories.NewMessageRepository(db, log)
		if err != nil {
			_ = db.Close()
			return storage{}, err
		}
		if config.DebugInspectorPort > 0 {
			log.Info("Debug Badger inspector available",
				"url", fmt.Sprintf("http://localhost:%d/inspect?prefix=msg:", config.DebugInspectorPort))
			database.StartDebugServer(db, config.DebugInspectorPort, "/inspect", repositories.InspectMapper)
		}
		return storage{
			messages: messages,
			users:    repositories.NewUserRepository(db),
			close: func() {
				// The sequence lease must be released before the database closes.
				_ = messages.Close()
				log.Info("Closing BadgerDB...")
				_ = db.Close()
			},
		}, nil
	}
}

func closer(log *slog.Logger, name string, db *sql.DB) func() {
	return func() {
		log.Info(fmt.Sprintf("Closing %s...", name))
		_ = db.Close()
	}
}

func buildBadgerOpts(ctx context.Context, config internal.Config, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
