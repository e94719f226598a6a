package rulesets

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/liamcoop/scholarships/internal/metrics"
	"github.com/liamcoop/scholarships/rules"
)

// Loader resolves the rules for a scholarship by trying each source in order.
//
// The first source that yields at least one valid rule wins. Fetch errors,
// bad JSON and validation issues are logged and the next source is tried.
// When nothing yields rules Load returns an empty list, which evaluates as
// eligible.
type Loader struct {
	sources []Source
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records which source resolved each load.
func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) {
		l.metrics = m
	}
}

// NewLoader creates a loader over sources, tried in the given order.
func NewLoader(sources []Source, opts ...LoaderOption) *Loader {
	l := &Loader{
		sources: sources,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewDefaultLoader prefers the store's active ruleset and falls back to
// bundled files.
func NewDefaultLoader(store Store, files fs.FS, opts ...LoaderOption) *Loader {
	return NewLoader([]Source{NewStoreSource(store), NewBundledSource(files)}, opts...)
}

// Load returns the validated rules for a scholarship. It never fails.
func (l *Loader) Load(ctx context.Context, scholarshipID string) []rules.Node {
	for _, src := range l.sources {
		data, err := src.Fetch(ctx, scholarshipID)
		if errors.Is(err, ErrNoRuleset) {
			continue
		}
		if err != nil {
			l.logger.WarnContext(ctx, "rule source unavailable",
				"source", src.Name(),
				"scholarship_id", scholarshipID,
				"error", err,
			)
			continue
		}

		nodes, issues := rules.ValidateJSON(data)
		if len(issues) > 0 {
			l.logger.WarnContext(ctx, "discarding invalid ruleset",
				"source", src.Name(),
				"scholarship_id", scholarshipID,
				"issues", issues,
			)
		}
		if len(nodes) == 0 {
			continue
		}

		l.metrics.IncrementRuleSource(src.Name())
		return nodes
	}

	l.logger.WarnContext(ctx, "no rules configured; scholarship evaluates as eligible",
		"scholarship_id", scholarshipID,
	)
	l.metrics.IncrementRuleSource("none")
	return []rules.Node{}
}
