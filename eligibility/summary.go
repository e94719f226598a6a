package eligibility

import (
	"encoding/json"
	"fmt"

	"github.com/liamcoop/scholarships/rules"
)

// Generic reason attached to a scholarship whose evaluation failed unexpectedly.
const (
	GenericErrorMessage    = "An error occurred while evaluating this scholarship."
	GenericErrorMessageKey = "eligibility.errors.evaluation"
)

// GenericErrorReason is the single reason reported for a failed evaluation.
var GenericErrorReason = Reason{
	Message:    GenericErrorMessage,
	MessageKey: GenericErrorMessageKey,
	Severity:   rules.SeverityBlocker,
}

// Reason is one failure message passed through to the presentation layer
// unlocalized.
type Reason struct {
	Message    string         `json:"message"`
	MessageKey string         `json:"messageKey,omitempty"`
	Severity   rules.Severity `json:"severity,omitempty"`
}

// UnmarshalJSON accepts either a bare message string or the object form.
func (r *Reason) UnmarshalJSON(data []byte) error {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		*r = Reason{Message: msg}
		return nil
	}

	type reason Reason
	var obj reason
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("reason must be a string or object: %w", err)
	}
	*r = Reason(obj)
	return nil
}

// ReasonFromLeaf maps a failed rule to its reason. Severity is reported
// with the blocker default applied.
func ReasonFromLeaf(leaf rules.Leaf) Reason {
	return Reason{
		Message:    leaf.Message,
		MessageKey: leaf.MessageKey,
		Severity:   leaf.Severity.Effective(),
	}
}

// Summary is the eligibility outcome for one scholarship.
type Summary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Eligible bool     `json:"eligible"`
	Reasons  []Reason `json:"reasons"`
}

// Outcome classifies an applicant across every evaluated scholarship.
type Outcome string

const (
	OutcomeFailAll  Outcome = "fail_all"
	OutcomePassAll  Outcome = "pass_all"
	OutcomePassSome Outcome = "pass_some"
)

// Classify reports fail_all when no summary is eligible, pass_all when every
// summary is, and pass_some otherwise. An empty list is fail_all.
func Classify(summaries []Summary) Outcome {
	if len(summaries) == 0 {
		return OutcomeFailAll
	}

	eligible := 0
	for _, s := range summaries {
		if s.Eligible {
			eligible++
		}
	}

	switch eligible {
	case 0:
		return OutcomeFailAll
	case len(summaries):
		return OutcomePassAll
	default:
		return OutcomePassSome
	}
}

// Partition splits summaries into eligible and ineligible lists, keeping order.
func Partition(summaries []Summary) (eligible, ineligible []Summary) {
	eligible = []Summary{}
	ineligible = []Summary{}
	for _, s := range summaries {
		if s.Eligible {
			eligible = append(eligible, s)
		} else {
			ineligible = append(ineligible, s)
		}
	}
	return eligible, ineligible
}
