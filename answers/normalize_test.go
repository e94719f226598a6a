package answers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAnswerSet_EnglishScoreAndExperience(t *testing.T) {
	got := ToAnswerSet(map[string]any{"englishScore": "7.5", "yearsOfExperience": "3"})

	assert.Equal(t, 7.5, got["ielts"])
	assert.Equal(t, 7.5, got["englishScore"])
	assert.Equal(t, 3.0, got["yearsOfExperience"])
	assert.IsType(t, float64(0), got["ielts"])
	assert.IsType(t, float64(0), got["yearsOfExperience"])
}

func TestToAnswerSet_VulnerableGroupsDefault(t *testing.T) {
	testCases := []struct {
		name  string
		input map[string]any
	}{
		{"nil value", map[string]any{"vulnerableGroups": nil}},
		{"absent", map[string]any{}},
		{"nil input", nil},
		{"empty array", map[string]any{"vulnerableGroups": []any{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToAnswerSet(tc.input)
			assert.Equal(t, NoVulnerableGroup, got[VulnerableGroupsField])
		})
	}

	got := ToAnswerSet(map[string]any{"vulnerableGroups": []any{"disability", "refugee"}})
	assert.Equal(t, "disability", got[VulnerableGroupsField])
}

func TestToAnswerSet_NumericCoercion(t *testing.T) {
	testCases := []struct {
		name    string
		value   any
		want    float64
		dropped bool
	}{
		{"string int", "25", 25, false},
		{"string float with spaces", " 3.2 ", 3.2, false},
		{"int kind", 30, 30, false},
		{"float32", float32(2.5), 2.5, false},
		{"float64", 40.0, 40, false},
		{"empty string", "", 0, true},
		{"whitespace", "   ", 0, true},
		{"not a number", "twenty", 0, true},
		{"NaN string", "NaN", 0, true},
		{"Inf string", "Inf", 0, true},
		{"NaN float", math.NaN(), 0, true},
		{"bool", true, 0, true},
		{"array", []any{"25"}, 0, true},
		{"nil", nil, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToAnswerSet(map[string]any{"age": tc.value})
			v, ok := got["age"]
			if tc.dropped {
				assert.False(t, ok, "age should be deleted, got %v", v)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestToAnswerSet_CasingCanonicalization(t *testing.T) {
	got := ToAnswerSet(map[string]any{"GPA": "3.6", "Nationality": []any{"Vietnam"}})

	assert.Equal(t, 3.6, got["gpa"])
	assert.Equal(t, "Vietnam", got["nationality"])
	assert.NotContains(t, got, "GPA")
	assert.NotContains(t, got, "Nationality")
}

func TestToAnswerSet_CasingPrefersCanonical(t *testing.T) {
	got := ToAnswerSet(map[string]any{"gpa": 3.9, "GPA": "2.0", "IELTS": 6.0, "ielts": 7.0})

	assert.Equal(t, 3.9, got["gpa"])
	assert.Equal(t, 7.0, got["ielts"])
	assert.NotContains(t, got, "GPA")
	assert.NotContains(t, got, "IELTS")
}

func TestToAnswerSet_InvalidCanonicalFallsBackToVariant(t *testing.T) {
	got := ToAnswerSet(map[string]any{"gpa": "n/a", "GPA": "3.1"})

	assert.Equal(t, 3.1, got["gpa"])
}

func TestToAnswerSet_BlankCanonicalFallsBackToVariant(t *testing.T) {
	testCases := []struct {
		name  string
		input map[string]any
	}{
		{"empty array", map[string]any{"Nationality": []any{"Laos"}, "nationality": []any{}}},
		{"empty string slice", map[string]any{"Nationality": "Laos", "nationality": []string{}}},
		{"nil", map[string]any{"Nationality": []any{"Laos"}, "nationality": nil}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToAnswerSet(tc.input)

			assert.Equal(t, "Laos", got["nationality"])
			assert.NotContains(t, got, "Nationality")
			assert.Equal(t, got, ToAnswerSet(got))
		})
	}
}

func TestToAnswerSet_ArrayCollapse(t *testing.T) {
	got := ToAnswerSet(map[string]any{
		"degreeLevel":   []any{"masters"},
		"fieldOfStudy":  []string{"engineering", "science"},
		"gender":        "female",
		"englishTest":   []any{},
		"favouriteList": []any{"kept", "as", "is"},
	})

	assert.Equal(t, "masters", got["degreeLevel"])
	assert.Equal(t, "engineering", got["fieldOfStudy"])
	assert.Equal(t, "female", got["gender"])
	assert.NotContains(t, got, "englishTest")
	assert.Equal(t, []any{"kept", "as", "is"}, got["favouriteList"])
}

func TestToAnswerSet_DerivedFields(t *testing.T) {
	t.Run("months to years", func(t *testing.T) {
		got := ToAnswerSet(map[string]any{"monthsOfExperience": "30"})
		assert.Equal(t, 2.5, got["yearsOfExperience"])
		assert.Equal(t, 30.0, got["monthsOfExperience"])
	})

	t.Run("existing years wins", func(t *testing.T) {
		got := ToAnswerSet(map[string]any{"monthsOfExperience": 48, "yearsOfExperience": 1})
		assert.Equal(t, 1.0, got["yearsOfExperience"])
	})

	t.Run("invalid months derives nothing", func(t *testing.T) {
		got := ToAnswerSet(map[string]any{"monthsOfExperience": "lots"})
		assert.NotContains(t, got, "yearsOfExperience")
		assert.NotContains(t, got, "monthsOfExperience")
	})

	t.Run("ielts proxy keeps explicit ielts", func(t *testing.T) {
		got := ToAnswerSet(map[string]any{"englishScore": 6, "ielts": "7"})
		assert.Equal(t, 7.0, got["ielts"])
	})

	t.Run("nationality copied to citizenship", func(t *testing.T) {
		got := ToAnswerSet(map[string]any{"nationality": []any{"Indonesia"}})
		assert.Equal(t, "Indonesia", got["citizenship"])
	})
}

func TestToAnswerSet_PassesUnknownKeysThrough(t *testing.T) {
	got := ToAnswerSet(map[string]any{"motivation": "To learn", "reference": map[string]any{"name": "x"}})

	assert.Equal(t, "To learn", got["motivation"])
	assert.Equal(t, map[string]any{"name": "x"}, got["reference"])
}

func TestToAnswerSet_DoesNotMutateInput(t *testing.T) {
	input := map[string]any{
		"age":              "22",
		"GPA":              "3.0",
		"degreeLevel":      []any{"bachelor"},
		"vulnerableGroups": nil,
	}
	snapshot := map[string]any{
		"age":              "22",
		"GPA":              "3.0",
		"degreeLevel":      []any{"bachelor"},
		"vulnerableGroups": nil,
	}

	ToAnswerSet(input)

	assert.Equal(t, snapshot, input)
}

func TestToAnswerSet_Idempotent(t *testing.T) {
	inputs := []map[string]any{
		{},
		{"englishScore": "7.5", "yearsOfExperience": "3"},
		{"GPA": "3.2", "gpa": "x", "Age": 30, "Nationality": []any{[]any{"Laos"}}},
		{"monthsOfExperience": 18, "vulnerableGroups": []string{"refugee"}, "gender": []any{}},
		{"age": "NaN", "ielts": "", "toefl": 95, "other": []any{1, 2}},
		{"nationality": "Kenya", "citizenship": "Uganda"},
	}

	for _, in := range inputs {
		once := ToAnswerSet(in)
		twice := ToAnswerSet(once)
		assert.Equal(t, once, twice)
	}
}

func TestNewNormalizer_CompileError(t *testing.T) {
	_, err := NewNormalizer([]DerivedField{{Name: "x", Source: "y", Expression: "answers.y +"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile derived field x")

	_, err = NewNormalizer([]DerivedField{{Name: "", Source: "y", Expression: "answers.y"}})
	require.Error(t, err)
}

func TestNormalizer_CustomDerivation(t *testing.T) {
	n, err := NewNormalizer([]DerivedField{
		{Name: "seniorApplicant", Source: "age", Expression: `answers.age >= 40.0`},
	})
	require.NoError(t, err)

	got := n.Normalize(map[string]any{"age": "45"})

	assert.Equal(t, true, got["seniorApplicant"])
	assert.NotContains(t, got, "citizenship")
}
