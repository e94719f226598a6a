package config

import (
	"os"
	"strconv"
	"time"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures process level configuration.
type Server struct {
	Addr                  string
	StoreBackend          string
	DatabaseURL           string
	RedisURL              string
	RulesDir              string // empty uses the embedded default rules
	EvaluationConcurrency int
	RequestTimeout        time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                  os.Getenv("ADDR"),
		StoreBackend:          os.Getenv("STORE_BACKEND"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		RulesDir:              os.Getenv("RULES_DIR"),
		EvaluationConcurrency: 8,
		RequestTimeout:        60 * time.Second,
	}

	if cfg.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		} else {
			cfg.Addr = ":8080"
		}
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
	}

	if n, err := strconv.Atoi(os.Getenv("EVALUATION_CONCURRENCY")); err == nil && n > 0 {
		cfg.EvaluationConcurrency = n
	}
	if d, err := time.ParseDuration(os.Getenv("REQUEST_TIMEOUT")); err == nil && d > 0 {
		cfg.RequestTimeout = d
	}

	return cfg
}
