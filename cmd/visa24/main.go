package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/api"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/config"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/database"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/document"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/logger"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/middleware"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/repository"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/store"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/submit"
)

func main() {
	app := &cli.App{
		Name:  "visa24",
		Usage: "Vietnam visa application intake service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				EnvVars: []string{"VISA24_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection URL (submissions disabled when empty)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL (in-memory draft store when empty)",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "backend-url",
				Value:   config.DefaultBackendURL,
				Usage:   "Submissions backend base URL",
				EnvVars: []string{"BACKEND_URL"},
			},
			&cli.StringFlag{
				Name:    "recognition-url",
				Usage:   "Passport recognition service base URL (disabled when empty)",
				EnvVars: []string{"RECOGNITION_URL"},
			},
			&cli.IntFlag{
				Name:    "rate-limit",
				Value:   config.DefaultRateLimit,
				Usage:   "Requests per minute per IP",
				EnvVars: []string{"RATE_LIMIT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(c, &cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo *repository.ApplicationRepository
	if cfg.DatabaseURL != "" {
		if err := database.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create database pool: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}

		repo, err = repository.NewApplicationRepository(pool)
		if err != nil {
			return fmt.Errorf("failed to create application repository: %w", err)
		}
	} else {
		slog.Warn("no database URL configured, submissions endpoint disabled")
	}

	kv, err := openKV(ctx, cfg)
	if err != nil {
		return err
	}
	drafts := store.NewDraftStore(kv)

	var pipeline *document.Pipeline
	if cfg.RecognitionURL != "" {
		rc := document.NewRecognitionClient(cfg.RecognitionURL)
		pipeline = document.NewPipeline(rc, rc)
	} else {
		slog.Warn("no recognition URL configured, documents stored without extraction")
		pipeline = document.NewPipeline(nil, nil)
	}

	var submitter submit.Submitter
	if cfg.BackendURL != "" {
		client, err := submit.NewClient(cfg.BackendURL)
		if err != nil {
			return fmt.Errorf("failed to create submit client: %w", err)
		}
		submitter = client
	}

	sessions, err := api.NewSessionRegistry(drafts, pipeline, submitter)
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}

	h, err := api.New(sessions, repo)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	limiter, err := middleware.NewRateLimiter(cfg.RateLimit, time.Minute, []string{"/health"})
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	defer limiter.Close()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: limiter.Middleware(mux),
		// Document uploads carry multi-megabyte bodies.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// applyFlags overrides file config with explicitly set CLI flags.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("port") || cfg.Port == "" {
		cfg.Port = c.String("port")
	}
	if c.IsSet("database-url") || cfg.DatabaseURL == "" {
		cfg.DatabaseURL = c.String("database-url")
	}
	if c.IsSet("redis-url") || cfg.RedisURL == "" {
		cfg.RedisURL = c.String("redis-url")
	}
	if c.IsSet("backend-url") || cfg.BackendURL == "" {
		cfg.BackendURL = c.String("backend-url")
	}
	if c.IsSet("recognition-url") || cfg.RecognitionURL == "" {
		cfg.RecognitionURL = c.String("recognition-url")
	}
	if c.IsSet("rate-limit") || cfg.RateLimit == 0 {
		cfg.RateLimit = c.Int("rate-limit")
	}
}

// openKV connects to Redis when configured, otherwise falls back to the
// in-memory store. Drafts then do not survive a restart.
func openKV(ctx context.Context, cfg config.Config) (store.KV, error) {
	if cfg.RedisURL == "" {
		slog.Warn("no redis URL configured, drafts held in memory only")
		return store.NewMemoryKV(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return store.NewRedisKV(client, cfg.DraftTTL())
}
