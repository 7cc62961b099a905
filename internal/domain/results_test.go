package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunResults_PreservesOrder(t *testing.T) {
	results := NewRunResults([]StepResult{
		{StepID: "b", Label: "Label B", Text: "second"},
		{StepID: "a", Label: "Label A", Text: "first"},
		{StepID: "c", Label: "Label C", Text: "Error: boom", Failed: true},
	})

	assert.Equal(t, 3, results.Len())
	assert.Equal(t, []string{"b", "a", "c"}, results.Keys())

	text, ok := results.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", text)

	_, ok = results.Get("missing")
	assert.False(t, ok)
}

func TestNewRunResults_DuplicateKeepsFirst(t *testing.T) {
	results := NewRunResults([]StepResult{
		{StepID: "a", Text: "one"},
		{StepID: "a", Text: "two"},
	})

	assert.Equal(t, 1, results.Len())
	text, _ := results.Get("a")
	assert.Equal(t, "one", text)
}

func TestRunResults_IsolatedFromInput(t *testing.T) {
	entries := []StepResult{{StepID: "a", Text: "original"}}
	results := NewRunResults(entries)
	entries[0].Text = "mutated"

	out := results.Entries()
	out[0].Text = "mutated again"

	text, _ := results.Get("a")
	assert.Equal(t, "original", text)
}

func TestRunResults_FailuresAndUsage(t *testing.T) {
	results := NewRunResults([]StepResult{
		{StepID: "a", Text: "ok", Usage: Usage{PromptTokens: 10, CompletionTokens: 5}},
		{StepID: "b", Text: "Error: boom", Failed: true},
		{StepID: "c", Text: "ok", Usage: Usage{PromptTokens: 7, CompletionTokens: 3}},
	})

	assert.Equal(t, 1, results.FailedCount())
	assert.Equal(t, []string{"b"}, results.Failed())
	assert.Equal(t, Usage{PromptTokens: 17, CompletionTokens: 8}, results.TotalUsage())
	assert.Equal(t, map[string]string{"a": "ok", "b": "Error: boom", "c": "ok"}, results.Map())
}

func TestRunResults_NilSafe(t *testing.T) {
	var results *RunResults
	assert.Equal(t, 0, results.Len())
	assert.Nil(t, results.Keys())
	_, ok := results.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, results.FailedCount())
}
