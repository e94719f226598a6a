package rules

import (
	"math"
	"reflect"
	"strings"
)

// Evaluate walks every root node against answers and reports the verdict.
//
// Children are always evaluated before their group, so child failures precede
// the group's own synthetic failure in FailedRules. There is no short-circuit:
// every node is visited and every failure is collected. The result passes iff
// no collected failure has an effective severity of blocker.
//
// Evaluate never panics on malformed trees; unknown rule types and operators fail.
func Evaluate(answers map[string]any, nodes []Node) Result {
	en := evaluator{answers: answers, failed: []Leaf{}}
	for _, n := range nodes {
		en.visit(n)
	}

	passed := true
	for _, f := range en.failed {
		if f.Severity.Effective() == SeverityBlocker {
			passed = false
			break
		}
	}

	return Result{Passed: passed, FailedRules: en.failed}
}

type evaluator struct {
	answers map[string]any
	failed  []Leaf
}

func (en *evaluator) visit(n Node) bool {
	switch node := n.(type) {
	case *Leaf:
		if node == nil {
			return false
		}
		ok := EvaluateLeaf(node, en.answers)
		if !ok {
			en.failed = append(en.failed, *node)
		}
		return ok

	case *Group:
		if node == nil {
			return false
		}
		results := make([]bool, len(node.Rules))
		for i, child := range node.Rules {
			results[i] = en.visit(child)
		}

		ok := combine(node.Operator, results)
		if !ok && node.Message != "" {
			en.failed = append(en.failed, Leaf{
				ID:         node.ID,
				Type:       TypeText,
				Field:      GroupField,
				Value:      true,
				Message:    node.Message,
				MessageKey: node.MessageKey,
				Severity:   node.Severity,
			})
		}
		return ok

	default:
		return false
	}
}

// combine applies every (all) or some (any) semantics. An empty all passes
// and an empty any fails.
func combine(op Operator, results []bool) bool {
	switch op {
	case OperatorAll:
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	case OperatorAny:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// EvaluateLeaf applies a single leaf's predicate. A missing or nil answer
// fails every rule type.
func EvaluateLeaf(leaf *Leaf, answers map[string]any) bool {
	v, ok := answers[leaf.Field]
	if !ok || v == nil {
		return false
	}

	switch leaf.Type {
	case TypeMinScore:
		got, ok := toNumber(v)
		if !ok {
			return false
		}
		threshold, ok := toNumber(leaf.Value)
		if !ok {
			return false
		}
		return got >= threshold

	case TypeBoolean, TypeSelect:
		// select is exact match only; a comma-separated value is compared as one string.
		return strictEqual(v, leaf.Value)

	case TypeText:
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""

	default:
		return false
	}
}

// toNumber accepts Go numeric kinds only. Numeric strings are not numbers.
func toNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	var f float64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// strictEqual compares scalars by value. Numbers compare numerically across
// Go kinds; composite values are never equal.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if x, ok := toNumber(a); ok {
		y, ok := toNumber(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	default:
		return false
	}
}
