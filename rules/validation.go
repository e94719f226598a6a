package rules

import (
	"encoding/json"
	"fmt"
)

// ValidateJSON parses data and validates it as a rule list.
// A syntax error is reported as a single issue at the root path.
func ValidateJSON(data []byte) ([]Node, []string) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return []Node{}, []string{fmt.Sprintf("$: invalid JSON: %v", err)}
	}
	return Validate(v)
}

// Validate checks an untrusted decoded JSON value against the rule schema and
// builds the typed tree. Validation is all-or-nothing: if any element has an
// issue the returned node list is empty.
//
// Validate never panics and never applies severity defaults.
func Validate(v any) ([]Node, []string) {
	items, ok := v.([]any)
	if !ok {
		return []Node{}, []string{fmt.Sprintf("$: expected an array of rules, got %s", kindOf(v))}
	}

	var issues []string
	nodes := make([]Node, 0, len(items))
	for i, item := range items {
		n := validateNode(fmt.Sprintf("$[%d]", i), item, &issues)
		if n != nil {
			nodes = append(nodes, n)
		}
	}

	if len(issues) > 0 {
		return []Node{}, issues
	}
	return nodes, nil
}

func validateNode(path string, v any, issues *[]string) Node {
	obj, ok := v.(map[string]any)
	if !ok {
		addIssue(issues, path, "expected a rule object, got %s", kindOf(v))
		return nil
	}

	_, hasType := obj["type"]
	_, hasOperator := obj["operator"]
	switch {
	case hasType && hasOperator:
		addIssue(issues, path, "rule must define either type or operator, not both")
		return nil
	case hasOperator:
		return validateGroup(path, obj, issues)
	case hasType:
		return validateLeaf(path, obj, issues)
	default:
		addIssue(issues, path, "rule must define a type (leaf) or an operator (group)")
		return nil
	}
}

func validateLeaf(path string, obj map[string]any, issues *[]string) Node {
	before := len(*issues)

	leaf := &Leaf{
		ID:         requiredString(path, obj, "id", issues),
		Field:      requiredString(path, obj, "field", issues),
		Message:    requiredString(path, obj, "message", issues),
		MessageKey: optionalString(path, obj, "messageKey", issues),
		Severity:   optionalSeverity(path, obj, issues),
		Value:      obj["value"],
	}

	t := requiredString(path, obj, "type", issues)
	switch RuleType(t) {
	case TypeMinScore, TypeBoolean, TypeSelect, TypeText:
		leaf.Type = RuleType(t)
	default:
		if _, isString := obj["type"].(string); isString {
			addIssue(issues, path+".type", "unknown rule type %q (must be one of: minScore, boolean, select, text)", t)
		}
	}

	if len(*issues) > before {
		return nil
	}
	return leaf
}

func validateGroup(path string, obj map[string]any, issues *[]string) Node {
	before := len(*issues)

	group := &Group{
		ID:         requiredString(path, obj, "id", issues),
		Message:    optionalString(path, obj, "message", issues),
		MessageKey: optionalString(path, obj, "messageKey", issues),
		Severity:   optionalSeverity(path, obj, issues),
	}

	op := requiredString(path, obj, "operator", issues)
	switch Operator(op) {
	case OperatorAll, OperatorAny:
		group.Operator = Operator(op)
	default:
		if _, isString := obj["operator"].(string); isString {
			addIssue(issues, path+".operator", "unknown operator %q (must be one of: all, any)", op)
		}
	}

	raw, present := obj["rules"]
	children, isArray := raw.([]any)
	switch {
	case !present:
		addIssue(issues, path+".rules", "is required")
	case !isArray:
		addIssue(issues, path+".rules", "expected an array, got %s", kindOf(raw))
	default:
		group.Rules = make([]Node, 0, len(children))
		for i, child := range children {
			n := validateNode(fmt.Sprintf("%s.rules[%d]", path, i), child, issues)
			if n != nil {
				group.Rules = append(group.Rules, n)
			}
		}
	}

	if len(*issues) > before {
		return nil
	}
	return group
}

func requiredString(path string, obj map[string]any, key string, issues *[]string) string {
	raw, ok := obj[key]
	if !ok {
		addIssue(issues, path+"."+key, "is required")
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		addIssue(issues, path+"."+key, "expected a string, got %s", kindOf(raw))
		return ""
	}
	return s
}

func optionalString(path string, obj map[string]any, key string, issues *[]string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		addIssue(issues, path+"."+key, "expected a string, got %s", kindOf(raw))
		return ""
	}
	return s
}

func optionalSeverity(path string, obj map[string]any, issues *[]string) Severity {
	raw, ok := obj["severity"]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		addIssue(issues, path+".severity", "expected a string, got %s", kindOf(raw))
		return ""
	}
	switch Severity(s) {
	case SeverityBlocker, SeverityWarn:
		return Severity(s)
	default:
		addIssue(issues, path+".severity", "unknown severity %q (must be one of: blocker, warn)", s)
		return ""
	}
}

func addIssue(issues *[]string, path, format string, args ...any) {
	*issues = append(*issues, path+": "+fmt.Sprintf(format, args...))
}

// kindOf names a decoded JSON value's type for issue messages.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
