package answers

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DerivedField computes Name from other answers when Name is absent and
// Source is present. Expression is CEL over the `answers` map.
type DerivedField struct {
	Name       string
	Source     string
	Expression string
}

// DefaultDerivedFields returns the derivations applied by ToAnswerSet.
func DefaultDerivedFields() []DerivedField {
	return []DerivedField{
		{Name: "yearsOfExperience", Source: "monthsOfExperience", Expression: `answers.monthsOfExperience / 12.0`},
		{Name: "ielts", Source: "englishScore", Expression: `answers.englishScore`},
		{Name: "citizenship", Source: "nationality", Expression: `answers.nationality`},
	}
}

type compiledField struct {
	DerivedField
	program cel.Program
}

func compileDerivedFields(fields []DerivedField) ([]compiledField, error) {
	env, err := cel.NewEnv(
		cel.Variable("answers", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]compiledField, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Source == "" {
			return nil, fmt.Errorf("derived field %q requires a name and a source", f.Name)
		}

		ast, issues := env.Compile(f.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile derived field %s: %w", f.Name, issues.Err())
		}

		prog, err := env.Program(ast, cel.CostLimit(10000))
		if err != nil {
			return nil, fmt.Errorf("program creation error for %s: %w", f.Name, err)
		}

		compiled = append(compiled, compiledField{DerivedField: f, program: prog})
	}

	return compiled, nil
}

// deriveFields fills absent targets. A derivation that fails to evaluate
// leaves its target absent.
func (n *Normalizer) deriveFields(out AnswerSet) {
	for _, f := range n.derived {
		if _, exists := out[f.Name]; exists {
			continue
		}
		if v, ok := out[f.Source]; !ok || v == nil {
			continue
		}

		val, _, err := f.program.Eval(map[string]any{"answers": map[string]any(out)})
		if err != nil || val == nil {
			continue
		}
		out[f.Name] = val.Value()
	}
}
