package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/4xmen/pairchat/internal/auth"
	"github.com/4xmen/pairchat/internal/cache"
	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/db"
	"github.com/4xmen/pairchat/internal/handlers"
	"github.com/4xmen/pairchat/internal/logging"
	"github.com/4xmen/pairchat/internal/server"
	"github.com/4xmen/pairchat/internal/storage"
	"github.com/4xmen/pairchat/pkg/config"
)

const (
	defaultJWTSecret = "your-secret-key-change-in-production"
	shutdownTimeout  = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "pairchat",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	if err := runCommand(ctx, cfg, logger, args); err != nil {
		logger.Error().Err(err).Str("command", args[0]).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string) error {
	command := args[0]

	switch command {
	case "serve":
		return runServer(ctx, cfg, logger)
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "migrate":
		return runMigrate(cfg, os.Stdout, args[1:])
	case "purge-rooms":
		return runPurgeRooms(ctx, cfg, os.Stdout, args[1:])
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  pairchat [serve]                              Start the web server")
	fmt.Fprintln(out, "  pairchat status [--json]                      Show application statistics")
	fmt.Fprintln(out, "  pairchat migrate [up|down|version] [--database PATH]")
	fmt.Fprintln(out, "  pairchat purge-rooms [--older-than 720h] [--dry-run]")
}

// openStorage returns the configured blob store together with the local
// paths that must never appear in error responses.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, []string, error) {
	switch cfg.StorageDriver {
	case "s3":
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	default:
		local, err := storage.NewLocalStorage(cfg.FileStoragePath)
		if err != nil {
			return nil, nil, err
		}
		return local, []string{local.BasePath()}, nil
	}
}

// openCache picks Redis when an address is configured and an in-process
// cache otherwise. A zero CACHE_TTL disables caching.
func openCache(cfg *config.Config) (cache.Cache, func(), error) {
	noop := func() {}
	if cfg.CacheTTL <= 0 {
		return nil, noop, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), noop, nil
	}

	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Address:  cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, "pairchat")
	if err != nil {
		return nil, noop, err
	}
	return rc, func() { rc.Close() }, nil
}

// newChatService wires the chat service to the configured storage and cache.
func newChatService(ctx context.Context, cfg *config.Config, conn *db.DB) (*chat.Service, []string, func(), error) {
	blobs, redact, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	c, closeCache, err := openCache(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	opts := []chat.Option{chat.WithMaxFileSize(cfg.MaxUploadSize)}
	if c != nil {
		opts = append(opts, chat.WithCache(c, cfg.CacheTTL))
	}
	return chat.New(conn.GetConn(), blobs, opts...), redact, closeCache, nil
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.IsProduction() && cfg.JWTSecret == defaultJWTSecret {
		logger.Warn().Msg("JWT_SECRET is the built-in default; set a real secret in production")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	chatSvc, redact, closeCache, err := newChatService(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeCache()

	authSvc := auth.NewWithTokenTTL(database.GetConn(), cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handlers.NewAuthHandler(authSvc)
	chatHandler := handlers.NewChatHandler(chatSvc,
		handlers.WithPublicBaseURL(cfg.PublicBaseURL),
		handlers.WithMaxRequestSize(cfg.MaxRequestSize),
		handlers.WithRedactedPaths(redact...),
	)

	router := server.New(server.Options{
		Production:    cfg.IsProduction(),
		CORSOrigins:   cfg.CORSOrigins,
		MaxUploadSize: cfg.MaxUploadSize,
		RateLimits:    server.DefaultRateLimits(),
		Logger:        logger,
	}, authHandler, chatHandler)

	logger.Info().
		Str("environment", cfg.Environment).
		Str("storage", cfg.StorageDriver).
		Bool("redis", cfg.RedisAddr != "").
		Msg("pairchat initialized")

	return server.Run(ctx, fmt.Sprintf("0.0.0.0:%s", cfg.Port), router, shutdownTimeout, logger)
}
