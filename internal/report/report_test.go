package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/article-analyzer/internal/catalog"
	"github.com/spherical/article-analyzer/internal/domain"
)

var fixedTime = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]domain.AnalysisStep{
		{ID: "A", Label: "Label A", Instruction: "Ia"},
		{ID: "B", Label: "Label B", Instruction: "Ib"},
	})
	require.NoError(t, err)
	return c
}

func TestRender_Layout(t *testing.T) {
	results := domain.NewRunResults([]domain.StepResult{
		{StepID: "A", Label: "Label A", Text: "resA"},
		{StepID: "B", Label: "Label B", Text: "Error: boom", Failed: true},
	})

	got := NewAssembler(testCatalog(t)).Render(results, Metadata{
		Source:    "/tmp/papers/article.pdf",
		Timestamp: fixedTime,
	})

	banner := strings.Repeat("=", 80)
	rule := strings.Repeat("-", 80)
	want := strings.Join([]string{
		banner,
		"ARTICLE ANALYSIS REPORT",
		banner,
		"",
		"Date: 2024-03-05 14:07:09",
		"File: article.pdf",
		"Failed steps: 1 of 2",
		"",
		"",
		"",
		rule,
		"",
		"LABEL A",
		rule,
		"",
		"resA",
		"",
		"",
		rule,
		"",
		"LABEL B",
		rule,
		"",
		"Error: boom",
		"",
	}, "\n")

	assert.Equal(t, want, got)
}

func TestRender_CatalogOrderWinsOverResultOrder(t *testing.T) {
	results := domain.NewRunResults([]domain.StepResult{
		{StepID: "B", Text: "second"},
		{StepID: "A", Text: "first"},
		{StepID: "Z", Text: "not in catalog"},
	})

	got := NewAssembler(testCatalog(t)).Render(results, Metadata{Source: "a.pdf", Timestamp: fixedTime})

	idxA := strings.Index(got, "LABEL A")
	idxB := strings.Index(got, "LABEL B")
	require.NotEqual(t, -1, idxA)
	require.NotEqual(t, -1, idxB)
	assert.Less(t, idxA, idxB)
	assert.Less(t, strings.Index(got, "first"), strings.Index(got, "second"))
	assert.NotContains(t, got, "not in catalog")
	assert.NotContains(t, got, "Failed steps")
}

func TestRender_SkipsMissingSteps(t *testing.T) {
	results := domain.NewRunResults([]domain.StepResult{{StepID: "B", Text: "only b"}})

	got := NewAssembler(testCatalog(t)).Render(results, Metadata{Timestamp: fixedTime, Model: "gpt-4o"})

	assert.NotContains(t, got, "LABEL A")
	assert.Contains(t, got, "LABEL B")
	assert.Contains(t, got, "Model: gpt-4o")
	assert.Contains(t, got, "File: -")
}

func TestRender_Deterministic(t *testing.T) {
	results := domain.NewRunResults([]domain.StepResult{
		{StepID: "A", Text: "resA"},
		{StepID: "B", Text: "resB"},
	})
	a := NewAssembler(testCatalog(t))
	meta := Metadata{Source: "x.pdf", Timestamp: fixedTime}

	assert.Equal(t, a.Render(results, meta), a.Render(results, meta))
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "analysis_20240305_140709.txt", DefaultFileName(fixedTime))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "report.txt")

	require.NoError(t, Save(path, "contenido análisis"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "contenido análisis", string(data))
}

func TestSave_Error(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := Save(filepath.Join(blocker, "report.txt"), "content")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
}

func TestResultsAssembler_UsesStoredEntries(t *testing.T) {
	results := domain.NewRunResults([]domain.StepResult{
		{StepID: "custom_b", Label: "Custom B", Text: "answer B"},
		{StepID: "custom_a", Label: "Custom A", Text: "Error: boom", Failed: true},
		{StepID: "unlabelled", Text: "answer C"},
	})

	got := NewResultsAssembler(results).Render(results, Metadata{Source: "a.pdf", Timestamp: fixedTime})

	idxB := strings.Index(got, "CUSTOM B")
	idxA := strings.Index(got, "CUSTOM A")
	require.NotEqual(t, -1, idxB)
	require.NotEqual(t, -1, idxA)
	assert.Less(t, idxB, idxA)
	assert.Contains(t, got, "UNLABELLED")
	assert.Contains(t, got, "answer B")
	assert.Contains(t, got, "Failed steps: 1 of 3")
}
