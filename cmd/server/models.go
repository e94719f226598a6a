package main

import (
	"encoding/json"

	"github.com/liamcoop/scholarships/eligibility"
	"github.com/liamcoop/scholarships/rules"
	"github.com/liamcoop/scholarships/rulesets"
	"github.com/liamcoop/scholarships/scholarships"
)

// API Request and Response Models with Swagger annotations

// EvaluateRequest represents the request body for evaluating an applicant
type EvaluateRequest struct {
	Answers map[string]any `json:"answers" binding:"required"`
	// Optional subset of scholarship ids; defaults to every registered scholarship
	Scholarships []string `json:"scholarships,omitempty" example:"aas,chevening"`
} // @name EvaluateRequest

// EvaluateResponse represents the eligibility outcome for one applicant
type EvaluateResponse struct {
	Outcome        eligibility.Outcome   `json:"outcome" example:"pass_some"`
	Summaries      []eligibility.Summary `json:"summaries"`
	Eligible       []eligibility.Summary `json:"eligible"`
	Ineligible     []eligibility.Summary `json:"ineligible"`
	EvaluationTime string                `json:"evaluationTime" example:"2.3ms"`
} // @name EvaluateResponse

// ValidateRulesResponse represents the result of validating a rule list
type ValidateRulesResponse struct {
	Valid  bool        `json:"valid" example:"false"`
	Issues []string    `json:"issues" example:"$[0].type: unknown rule type \"maxScore\""`
	Rules  rules.Nodes `json:"rules"`
} // @name ValidateRulesResponse

// PublishRulesetRequest represents the request body for publishing a ruleset version
type PublishRulesetRequest struct {
	Version string          `json:"version" example:"2025-intake" binding:"required"`
	Rules   json.RawMessage `json:"rules" binding:"required"`
} // @name PublishRulesetRequest

// RulesetsListResponse represents every published version of a scholarship's rules
type RulesetsListResponse struct {
	Rulesets []*rulesets.Ruleset `json:"rulesets"`
} // @name RulesetsListResponse

// RulesResponse represents the rules that evaluation currently uses for a scholarship
type RulesResponse struct {
	ScholarshipID string      `json:"scholarshipId" example:"aas"`
	Rules         rules.Nodes `json:"rules"`
} // @name RulesResponse

// ScholarshipsListResponse represents the response for listing scholarships
type ScholarshipsListResponse struct {
	Scholarships []scholarships.Scholarship `json:"scholarships"`
} // @name ScholarshipsListResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string   `json:"error" example:"ruleset failed validation"`
	Details string   `json:"details,omitempty"`
	Issues  []string `json:"issues,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status" example:"healthy"`
	Backend string `json:"backend" example:"postgres"`
	Error   string `json:"error,omitempty"`
} // @name HealthResponse
