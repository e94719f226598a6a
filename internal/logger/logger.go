package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// Type alias for slog.Level for easier usage
type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug // -4
	LevelInfo    = slog.LevelInfo  // 0
	LevelWarning = slog.LevelWarn  // 4
	LevelError   = slog.LevelError // 8
	LevelFatal   = slog.Level(12)  // 12
)

// Config controls handler format, level and warning/error sampling.
type Config struct {
	Level  slog.Level
	Format string // "json" (default) or "text"
	// SampleRate keeps 1 out of every N warnings/errors. Values <= 1 keep all.
	SampleRate int
	Output     io.Writer
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT and ERROR_SAMPLE_RATE.
func FromEnv() Config {
	cfg := Config{
		Level:      LevelInfo,
		Format:     "json",
		SampleRate: 1,
		Output:     os.Stdout,
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := ParseLevel(levelStr); err == nil {
			cfg.Level = level
		}
	}

	if format := strings.ToLower(os.Getenv("LOG_FORMAT")); format == "text" {
		cfg.Format = "text"
	}

	if sampleStr := os.Getenv("ERROR_SAMPLE_RATE"); sampleStr != "" {
		if rate, err := strconv.Atoi(sampleStr); err == nil && rate > 0 {
			cfg.SampleRate = rate
		}
	}

	return cfg
}

// New builds a logger from cfg. The returned LevelVar can change the level
// at runtime.
func New(cfg Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.SampleRate > 1 {
		handler = &samplingHandler{rate: cfg.SampleRate, handler: handler}
	}

	return slog.New(handler), level
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a string level name to slog.Level
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

// samplingHandler keeps 1 out of every rate warning and error records.
// Lower levels always pass through.
type samplingHandler struct {
	rate    int
	handler slog.Handler
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= LevelWarning && r.Level < LevelFatal && rand.Intn(h.rate) != 0 {
		return nil
	}
	return h.handler.Handle(ctx, r)
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{rate: h.rate, handler: h.handler.WithAttrs(attrs)}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{rate: h.rate, handler: h.handler.WithGroup(name)}
}

// Fatal logs at fatal level and exits.
func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}
