package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/article-analyzer/internal/domain"
)

func TestDefault(t *testing.T) {
	c := Default()

	require.Equal(t, 10, c.Len())
	assert.Equal(t, "article_summary", c.Step(0).ID)
	assert.Equal(t, "conclusions", c.Step(c.Len()-1).ID)

	seen := make(map[string]bool)
	for _, s := range c.Steps() {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
		assert.NotEmpty(t, s.Label)
		assert.NotEmpty(t, s.Instruction)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		steps []domain.AnalysisStep
	}{
		{name: "empty catalog", steps: nil},
		{name: "empty id", steps: []domain.AnalysisStep{{ID: " ", Label: "L", Instruction: "I"}}},
		{name: "empty label", steps: []domain.AnalysisStep{{ID: "a", Label: "", Instruction: "I"}}},
		{name: "empty instruction", steps: []domain.AnalysisStep{{ID: "a", Label: "L", Instruction: "  "}}},
		{
			name: "duplicate id",
			steps: []domain.AnalysisStep{
				{ID: "a", Label: "L", Instruction: "I"},
				{ID: "a", Label: "L2", Instruction: "I2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.steps)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	steps := []domain.AnalysisStep{{ID: "a", Label: "Label A", Instruction: "Ia"}}
	c, err := New(steps)
	require.NoError(t, err)

	steps[0].Label = "changed"
	out := c.Steps()
	out[0].Label = "changed too"

	assert.Equal(t, "Label A", c.Step(0).Label)
}

func TestLookupAndIDs(t *testing.T) {
	c, err := New([]domain.AnalysisStep{
		{ID: "A", Label: "Label A", Instruction: "Ia"},
		{ID: "B", Label: "Label B", Instruction: "Ib"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, c.IDs())

	step, ok := c.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "Label B", step.Label)

	_, ok = c.Lookup("C")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steps.yaml")
	content := `steps:
  - id: summary
    label: Summary
    instruction: Summarize the article.
  - id: methods
    label: Methods
    instruction: Describe the methods.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"summary", "methods"}, c.IDs())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps: [unclosed"), 0644))
	_, err = Load(bad)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("steps: []\n"), 0644))
	_, err = Load(empty)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestLoadOrDefault(t *testing.T) {
	c, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default().IDs(), c.IDs())
}
