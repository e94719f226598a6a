// Package answers turns loosely typed form submissions into the canonical
// answer set that eligibility rules are written against.
package answers

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// AnswerSet maps canonical field names to scalar answer values.
type AnswerSet map[string]any

// NoVulnerableGroup is substituted when the applicant did not pick a
// vulnerable-group category. Rules that test for "none" depend on it.
const NoVulnerableGroup = "none"

// VulnerableGroupsField is the categorical field that receives the default.
const VulnerableGroupsField = "vulnerableGroups"

// numericFields are parsed to float64 or dropped.
var numericFields = []string{
	"age", "Age",
	"gpa", "GPA",
	"yearsOfExperience",
	"monthsOfExperience",
	"ielts", "IELTS",
	"englishScore",
	"ieltsListening", "ieltsReading", "ieltsWriting", "ieltsSpeaking",
	"toefl",
}

// casingAliases maps a legacy capitalization to its canonical key.
var casingAliases = []struct{ variant, canonical string }{
	{"GPA", "gpa"},
	{"IELTS", "ielts"},
	{"Age", "age"},
	{"Nationality", "nationality"},
	{"Gender", "gender"},
}

// multiSelectFields may arrive wrapped in a single-element array.
var multiSelectFields = []string{
	"nationality",
	"countryOfResidence",
	"degreeLevel",
	"fieldOfStudy",
	VulnerableGroupsField,
	"gender",
	"englishTest",
	"employmentSector",
}

var defaultNormalizer = mustNewNormalizer(DefaultDerivedFields())

// ToAnswerSet normalizes raw form answers using the default derived fields.
func ToAnswerSet(input map[string]any) AnswerSet {
	return defaultNormalizer.Normalize(input)
}

// Normalizer applies coercion, casing, array collapse, defaults and derived
// fields, in that order.
type Normalizer struct {
	derived []compiledField
}

// NewNormalizer compiles the derived field expressions.
func NewNormalizer(fields []DerivedField) (*Normalizer, error) {
	compiled, err := compileDerivedFields(fields)
	if err != nil {
		return nil, err
	}
	return &Normalizer{derived: compiled}, nil
}

func mustNewNormalizer(fields []DerivedField) *Normalizer {
	n, err := NewNormalizer(fields)
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize returns a new answer set; input is never modified.
// Keys the normalizer does not know about pass through unchanged.
func (n *Normalizer) Normalize(input map[string]any) AnswerSet {
	out := make(AnswerSet, len(input)+2)
	for k, v := range input {
		out[k] = v
	}

	coerceNumbers(out)
	canonicalizeCasing(out)
	collapseArrays(out)
	applyDefaults(out)
	n.deriveFields(out)

	return out
}

func coerceNumbers(out AnswerSet) {
	for _, key := range numericFields {
		v, ok := out[key]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			out[key] = f
		} else {
			delete(out, key)
		}
	}
}

// toFloat parses numbers and numeric strings. Empty, non-finite and
// non-numeric values are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
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
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func canonicalizeCasing(out AnswerSet) {
	for _, alias := range casingAliases {
		v, ok := out[alias.variant]
		if !ok {
			continue
		}
		if current, exists := out[alias.canonical]; !exists || isBlank(current) {
			out[alias.canonical] = v
		}
		delete(out, alias.variant)
	}
}

// isBlank reports whether v carries no answer: nil or an array with no
// scalar to collapse to.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	_, ok := firstScalar(v)
	return !ok
}

func collapseArrays(out AnswerSet) {
	for _, key := range multiSelectFields {
		v, ok := out[key]
		if !ok {
			continue
		}
		if scalar, ok := firstScalar(v); ok {
			out[key] = scalar
		} else {
			delete(out, key)
		}
	}
}

// firstScalar unwraps leading array elements until it reaches a non-array
// value. An empty array yields nothing.
func firstScalar(v any) (any, bool) {
	for {
		switch arr := v.(type) {
		case []any:
			if len(arr) == 0 {
				return nil, false
			}
			v = arr[0]
		case []string:
			if len(arr) == 0 {
				return nil, false
			}
			v = arr[0]
		default:
			return v, true
		}
	}
}

func applyDefaults(out AnswerSet) {
	if v, ok := out[VulnerableGroupsField]; !ok || v == nil {
		out[VulnerableGroupsField] = NoVulnerableGroup
	}
}
