package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/scholarships/eligibility"
	"github.com/liamcoop/scholarships/internal/metrics"
	"github.com/liamcoop/scholarships/rules"
	"github.com/liamcoop/scholarships/rulesets"
	"github.com/liamcoop/scholarships/scholarships"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators a Server is built from.
type Deps struct {
	Backend        string
	Registry       scholarships.Registry
	Store          rulesets.Store
	RuleFiles      fs.FS
	Logger         *slog.Logger
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	Health         func(ctx context.Context) error // nil means always healthy
	Concurrency    int
	RequestTimeout time.Duration
}

type Server struct {
	backend  string
	registry scholarships.Registry
	store    rulesets.Store
	loader   *rulesets.Loader
	service  *eligibility.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	health   func(ctx context.Context) error
	router   *chi.Mux
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.RuleFiles == nil {
		deps.RuleFiles = rulesets.DefaultBundle()
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 60 * time.Second
	}

	m := metrics.NewWithRegisterer(deps.Registerer)
	loader := rulesets.NewDefaultLoader(deps.Store, deps.RuleFiles,
		rulesets.WithLogger(deps.Logger),
		rulesets.WithMetrics(m),
	)

	s := &Server{
		backend:  deps.Backend,
		registry: deps.Registry,
		store:    deps.Store,
		loader:   loader,
		service: eligibility.New(loader,
			eligibility.WithLogger(deps.Logger),
			eligibility.WithMetrics(m),
			eligibility.WithConcurrency(deps.Concurrency),
		),
		metrics: m,
		logger:  deps.Logger,
		health:  deps.Health,
	}

	s.setupRoutes(deps.Gatherer, deps.RequestTimeout)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer, timeout time.Duration) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/api/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Evaluation
	r.Post("/api/v1/evaluate", s.handleEvaluate)
	r.Post("/api/v1/rules/validate", s.handleValidateRules)

	// Scholarship rules
	r.Route("/api/v1/scholarships", func(r chi.Router) {
		r.Get("/", s.handleListScholarships)

		r.Route("/{scholarshipId}", func(r chi.Router) {
			r.Get("/rules", s.handleGetRules)
			r.Get("/rulesets", s.handleListRulesets)
			r.Post("/rulesets", s.handlePublishRuleset)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "unhealthy",
				Backend: s.backend,
				Error:   err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Backend: s.backend})
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Answers == nil {
		respondError(w, http.StatusBadRequest, "answers are required", nil)
		return
	}

	list, err := s.registry.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scholarships", err)
		return
	}

	if len(req.Scholarships) > 0 {
		list, err = selectScholarships(list, req.Scholarships)
		if err != nil {
			respondError(w, http.StatusNotFound, "scholarship not found", err)
			return
		}
	}

	startTime := time.Now()
	summaries := s.service.EvaluateForApplicant(r.Context(), req.Answers, list)
	outcome := eligibility.Classify(summaries)
	s.metrics.IncrementClassification(string(outcome))

	eligible, ineligible := eligibility.Partition(summaries)
	respondJSON(w, http.StatusOK, EvaluateResponse{
		Outcome:        outcome,
		Summaries:      summaries,
		Eligible:       eligible,
		Ineligible:     ineligible,
		EvaluationTime: time.Since(startTime).String(),
	})
}

// selectScholarships keeps the registry entries named in ids, in registry order.
func selectScholarships(list []scholarships.Scholarship, ids []string) ([]scholarships.Scholarship, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	selected := make([]scholarships.Scholarship, 0, len(ids))
	for _, sch := range list {
		if wanted[sch.ID] {
			selected = append(selected, sch)
			delete(wanted, sch.ID)
		}
	}

	for _, id := range ids {
		if wanted[id] {
			return nil, fmt.Errorf("%w: %s", scholarships.ErrNotFound, id)
		}
	}
	return selected, nil
}

// Rule validation handler
func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	nodes, issues := rules.ValidateJSON(body)
	if issues == nil {
		issues = []string{}
	}

	respondJSON(w, http.StatusOK, ValidateRulesResponse{
		Valid:  len(issues) == 0,
		Issues: issues,
		Rules:  nodes,
	})
}

// List scholarships handler
func (s *Server) handleListScholarships(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scholarships", err)
		return
	}

	respondJSON(w, http.StatusOK, ScholarshipsListResponse{Scholarships: list})
}

// Effective rules handler
func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	scholarshipID := chi.URLParam(r, "scholarshipId")
	if err := scholarships.ValidateID(scholarshipID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid scholarship id", err)
		return
	}

	respondJSON(w, http.StatusOK, RulesResponse{
		ScholarshipID: scholarshipID,
		Rules:         s.loader.Load(r.Context(), scholarshipID),
	})
}

// List ruleset versions handler
func (s *Server) handleListRulesets(w http.ResponseWriter, r *http.Request) {
	scholarshipID := chi.URLParam(r, "scholarshipId")
	if err := scholarships.ValidateID(scholarshipID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid scholarship id", err)
		return
	}

	list, err := s.store.List(r.Context(), scholarshipID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rulesets", err)
		return
	}

	respondJSON(w, http.StatusOK, RulesetsListResponse{Rulesets: list})
}

// Publish ruleset handler
func (s *Server) handlePublishRuleset(w http.ResponseWriter, r *http.Request) {
	scholarshipID := chi.URLParam(r, "scholarshipId")
	if err := scholarships.ValidateID(scholarshipID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid scholarship id", err)
		return
	}

	var req PublishRulesetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Version == "" || len(req.Rules) == 0 {
		respondError(w, http.StatusBadRequest, "version and rules are required", nil)
		return
	}

	nodes, issues := rules.ValidateJSON(req.Rules)
	if len(issues) == 0 && len(nodes) == 0 {
		issues = []string{"$: ruleset must contain at least one rule"}
	}
	if len(issues) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "ruleset failed validation",
			Issues: issues,
		})
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, req.Rules); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rules JSON", err)
		return
	}

	rs := &rulesets.Ruleset{
		ScholarshipID: scholarshipID,
		Version:       req.Version,
		JSON:          compact.String(),
	}

	err := s.store.Publish(r.Context(), rs)
	if errors.Is(err, rulesets.ErrVersionExists) {
		respondError(w, http.StatusConflict, "ruleset version already exists", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to publish ruleset", err)
		return
	}

	s.logger.InfoContext(r.Context(), "ruleset published",
		"scholarship_id", scholarshipID,
		"version", rs.Version,
		"rules", len(nodes),
	)
	respondJSON(w, http.StatusCreated, rs)
}

// Helper functions
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// requestLogger logs one structured line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
