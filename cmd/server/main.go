package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/scholarships/internal/config"
	"github.com/liamcoop/scholarships/internal/logger"
	"github.com/liamcoop/scholarships/rulesets"
	"github.com/liamcoop/scholarships/scholarships"
)

// defaultScholarships seeds the registry for backends without a scholarships table.
var defaultScholarships = []scholarships.Scholarship{
	{ID: "aas", Name: "Australia Awards Scholarship", IsEnabled: true},
	{ID: "chevening", Name: "Chevening Scholarship", IsEnabled: true},
}

// openBackends builds the registry, ruleset store and health probe for the
// configured backend. The returned close function releases connections.
func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (Deps, func() error, error) {
	deps := Deps{
		Backend:        cfg.StoreBackend,
		Logger:         log,
		Concurrency:    cfg.EvaluationConcurrency,
		RequestTimeout: cfg.RequestTimeout,
		RuleFiles:      ruleFiles(cfg.RulesDir),
	}
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendMemory:
		registry, err := scholarships.NewInMemoryRegistry(defaultScholarships...)
		if err != nil {
			return Deps{}, nil, err
		}
		deps.Registry = registry
		deps.Store = rulesets.NewInMemoryStore()
		return deps, noop, nil

	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Deps{}, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return Deps{}, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return Deps{}, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		deps.Registry = scholarships.NewPostgresRegistry(db)
		deps.Store = rulesets.NewPostgresStore(db)
		deps.Health = db.PingContext
		return deps, db.Close, nil

	case config.BackendRedis:
		if cfg.RedisURL == "" {
			return Deps{}, nil, errors.New("REDIS_URL is required for the redis backend")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return Deps{}, nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return Deps{}, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		registry, err := scholarships.NewInMemoryRegistry(defaultScholarships...)
		if err != nil {
			_ = client.Close()
			return Deps{}, nil, err
		}
		deps.Registry = registry
		deps.Store = rulesets.NewRedisStore(client)
		deps.Health = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return deps, client.Close, nil

	default:
		return Deps{}, nil, fmt.Errorf("unknown STORE_BACKEND %q (use: memory, postgres, redis)", cfg.StoreBackend)
	}
}

func ruleFiles(dir string) fs.FS {
	if dir == "" {
		return rulesets.DefaultBundle()
	}
	return os.DirFS(dir)
}

func main() {
	cfg := config.FromEnv()
	log, _ := logger.New(logger.FromEnv())

	ctx := context.Background()
	deps, closeBackends, err := openBackends(ctx, cfg, log)
	if err != nil {
		logger.Fatal(log, "failed to open backends", "backend", cfg.StoreBackend, "error", err)
	}
	defer func() {
		if err := closeBackends(); err != nil {
			log.Error("failed to close backends", "error", err)
		}
	}()

	server := NewServer(deps)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Info("server starting", "addr", cfg.Addr, "backend", cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(log, "server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("server stopped")
}
