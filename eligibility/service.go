// Package eligibility evaluates one applicant against every enabled
// scholarship and classifies the aggregate outcome.
package eligibility

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/scholarships/answers"
	"github.com/liamcoop/scholarships/internal/metrics"
	"github.com/liamcoop/scholarships/rules"
	"github.com/liamcoop/scholarships/scholarships"
)

const defaultConcurrency = 8

// RuleLoader resolves the rules for a scholarship. Implementations must not
// fail; a scholarship without rules gets an empty list.
type RuleLoader interface {
	Load(ctx context.Context, scholarshipID string) []rules.Node
}

// Service runs the evaluator for every enabled scholarship of one applicant.
type Service struct {
	loader      RuleLoader
	normalizer  *answers.Normalizer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer injects a tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithConcurrency bounds how many scholarships are loaded at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithNormalizer replaces the default answer normalizer.
func WithNormalizer(n *answers.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// New creates a Service over loader.
func New(loader RuleLoader, opts ...Option) *Service {
	s := &Service{
		loader:      loader,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("scholarships/eligibility")
	}
	return s
}

// EvaluateForApplicant normalizes raw once and evaluates it against every
// enabled scholarship in list. Summaries keep the order of list. A failure
// while evaluating one scholarship yields an ineligible summary carrying
// GenericErrorReason and never affects the others.
func (s *Service) EvaluateForApplicant(ctx context.Context, raw map[string]any, list []scholarships.Scholarship) []Summary {
	start := time.Now()
	enabled := scholarships.Enabled(list)

	ctx, span := s.tracer.Start(ctx, "eligibility.EvaluateForApplicant",
		trace.WithAttributes(attribute.Int("scholarships.enabled", len(enabled))))
	defer span.End()

	set := s.normalize(raw)
	summaries := make([]Summary, len(enabled))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sch := range enabled {
		g.Go(func() error {
			summaries[i] = s.evaluateOne(ctx, set, sch)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.ObserveEvaluateLatency(time.Since(start))
	return summaries
}

func (s *Service) normalize(raw map[string]any) answers.AnswerSet {
	if s.normalizer != nil {
		return s.normalizer.Normalize(raw)
	}
	return answers.ToAnswerSet(raw)
}

func (s *Service) evaluateOne(ctx context.Context, set answers.AnswerSet, sch scholarships.Scholarship) (summary Summary) {
	ctx, span := s.tracer.Start(ctx, "eligibility.evaluateScholarship",
		trace.WithAttributes(attribute.String("scholarship.id", sch.ID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("evaluate scholarship %s: %v", sch.ID, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.ErrorContext(ctx, "scholarship evaluation failed",
				"scholarship_id", sch.ID,
				"error", err,
			)
			s.metrics.IncrementEvaluationError(sch.ID)
			summary = Summary{
				ID:       sch.ID,
				Name:     sch.Name,
				Eligible: false,
				Reasons:  []Reason{GenericErrorReason},
			}
		}
	}()

	nodes := s.loader.Load(ctx, sch.ID)
	result := rules.Evaluate(set, nodes)

	reasons := make([]Reason, 0, len(result.FailedRules))
	for _, leaf := range result.FailedRules {
		reasons = append(reasons, ReasonFromLeaf(leaf))
	}

	span.SetAttributes(
		attribute.Int("rules.count", len(nodes)),
		attribute.Bool("eligible", result.Passed),
		attribute.Int("rules.failed", len(result.FailedRules)),
	)
	s.metrics.IncrementOutcome(sch.ID, result.Passed)

	return Summary{
		ID:       sch.ID,
		Name:     sch.Name,
		Eligible: result.Passed,
		Reasons:  reasons,
	}
}
