package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `[{"id":"a","type":"text","field":"name","message":"required"}]`)
	bad := writeFile(t, dir, "bad.json", `[{"id":"a","type":"maxScore","field":"age","message":"m"}]`)

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true,"rules":1,"issues":[]}`, out)

	out, err = run(t, "validate", bad)
	assert.ErrorIs(t, err, errInvalidRules)
	assert.Contains(t, out, "$[0].type")
}

func TestValidate_YAMLRules(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", `
- id: english
  operator: any
  message: English requirement not met
  rules:
    - id: ielts
      type: minScore
      field: ielts
      value: 6.5
      message: IELTS 6.5
`)

	out, err := run(t, "validate", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true,"rules":1,"issues":[]}`, out)
}

func TestNormalize(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "answers.yaml", `
englishScore: "7.5"
yearsOfExperience: "3"
Nationality:
  - Kenya
`)

	out, err := run(t, "normalize", path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 7.5, got["ielts"])
	assert.Equal(t, 3.0, got["yearsOfExperience"])
	assert.Equal(t, "Kenya", got["nationality"])
	assert.Equal(t, "none", got["vulnerableGroups"])
}

func TestEvaluate_BundledRules(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "answers.json", `{
		"age": 25,
		"nationality": "Kenya",
		"australianResident": false,
		"ielts": 7,
		"yearsOfExperience": 3,
		"degreeLevel": "bachelor",
		"willReturnHome": true,
		"ieltsWriting": 6,
		"ieltsSpeaking": 6
	}`)

	out, err := run(t, "evaluate", path)
	require.NoError(t, err)

	var got struct {
		Outcome   string `json:"outcome"`
		Summaries []struct {
			ID       string `json:"id"`
			Eligible bool   `json:"eligible"`
		} `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "pass_all", got.Outcome)
	require.Len(t, got.Summaries, 2)
	assert.Equal(t, "aas", got.Summaries[0].ID)
	assert.Equal(t, "chevening", got.Summaries[1].ID)
}

func TestEvaluate_RulesDirAndScholarshipFlag(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "local.json", `[{"id":"age","type":"minScore","field":"age","value":30,"message":"too young"}]`)
	writeFile(t, rulesDir, "other.json", `[]`)
	answers := writeFile(t, t.TempDir(), "answers.json", `{"age": "25"}`)

	out, err := run(t, "evaluate", answers, "--rules-dir", rulesDir, "--scholarship", "local", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome: fail_all")
	assert.Contains(t, out, "too young")
	assert.NotContains(t, out, "other")
}

func TestEvaluate_RejectsBadScholarshipID(t *testing.T) {
	answers := writeFile(t, t.TempDir(), "answers.json", `{}`)

	_, err := run(t, "evaluate", answers, "--scholarship", "../etc")
	assert.Error(t, err)
}

func TestUnsupportedOutput(t *testing.T) {
	answers := writeFile(t, t.TempDir(), "answers.json", `{}`)

	_, err := run(t, "normalize", answers, "-o", "xml")
	assert.Error(t, err)
}
