package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RuleType identifies the predicate a Leaf applies to its field.
type RuleType string

const (
	TypeMinScore RuleType = "minScore"
	TypeBoolean  RuleType = "boolean"
	TypeSelect   RuleType = "select"
	TypeText     RuleType = "text"
)

// Operator combines the results of a Group's children.
type Operator string

const (
	OperatorAll Operator = "all"
	OperatorAny Operator = "any"
)

// Severity controls whether a failing node blocks eligibility.
// The zero value means the severity was not set on the node.
type Severity string

const (
	SeverityBlocker Severity = "blocker"
	SeverityWarn    Severity = "warn"
)

// Effective returns the severity used at evaluation time.
// Unset severity is treated as a blocker.
func (s Severity) Effective() Severity {
	if s == "" {
		return SeverityBlocker
	}
	return s
}

// GroupField is the field name carried by synthetic failures that report
// a failing group rather than a failing leaf.
const GroupField = "__group__"

// Node is a rule tree node. It is implemented only by *Leaf and *Group.
type Node interface {
	NodeID() string
	node()
}

// Leaf is one atomic predicate over one answer field.
type Leaf struct {
	ID         string   `json:"id"`
	Type       RuleType `json:"type"`
	Field      string   `json:"field"`
	Value      any      `json:"value"`
	Message    string   `json:"message"`
	MessageKey string   `json:"messageKey,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
}

// Group combines child nodes with an all/any operator and may carry its
// own failure message.
type Group struct {
	ID         string   `json:"id"`
	Operator   Operator `json:"operator"`
	Rules      []Node   `json:"rules"`
	Message    string   `json:"message,omitempty"`
	MessageKey string   `json:"messageKey,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
}

func (l *Leaf) NodeID() string  { return l.ID }
func (g *Group) NodeID() string { return g.ID }

func (*Leaf) node()  {}
func (*Group) node() {}

// MarshalJSON keeps an empty child list as [] instead of null.
func (g *Group) MarshalJSON() ([]byte, error) {
	type group Group
	out := group(*g)
	if out.Rules == nil {
		out.Rules = []Node{}
	}
	return json.Marshal(out)
}

// Nodes is a rule list that decodes through Validate, so a decoded list is
// always a well-formed tree.
type Nodes []Node

// MarshalJSON encodes a nil list as [].
func (n Nodes) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Node(n))
}

// UnmarshalJSON validates data and fails with every issue found.
func (n *Nodes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	nodes, issues := ValidateJSON(data)
	if len(issues) > 0 {
		return fmt.Errorf("invalid rules: %s", strings.Join(issues, "; "))
	}
	*n = nodes
	return nil
}

// Result is the outcome of evaluating a rule set against an answer set.
// FailedRules holds blocker and warn failures in evaluation order.
type Result struct {
	Passed      bool   `json:"passed"`
	FailedRules []Leaf `json:"failedRules"`
}

// Blockers returns only the failures that prevent eligibility.
func (r Result) Blockers() []Leaf {
	var out []Leaf
	for _, f := range r.FailedRules {
		if f.Severity.Effective() == SeverityBlocker {
			out = append(out, f)
		}
	}
	return out
}
