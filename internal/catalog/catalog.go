// Package catalog holds the ordered list of analysis steps run against an article.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spherical/article-analyzer/internal/domain"
)

// Catalog is an immutable ordered list of analysis steps.
type Catalog struct {
	steps []domain.AnalysisStep
	index map[string]int
}

// file is the on-disk YAML layout.
type file struct {
	Steps []domain.AnalysisStep `yaml:"steps"`
}

var defaultSteps = []domain.AnalysisStep{
	{
		ID:          "article_summary",
		Label:       "Article Summary",
		Instruction: "Write a detailed summary of the scientific article, highlighting its most important points.",
	},
	{
		ID:          "theoretical_basis",
		Label:       "Theoretical Basis",
		Instruction: "What are the theoretical foundations on which this research article is based?",
	},
	{
		ID:          "methodology",
		Label:       "Methodology",
		Instruction: "What methodology does this research article use? Describe the methods employed in detail.",
	},
	{
		ID:          "key_concepts",
		Label:       "Key Concepts",
		Instruction: "What are the key concepts addressed in the article? List them and briefly explain each one.",
	},
	{
		ID:          "objectives",
		Label:       "Research Objectives",
		Instruction: "What are the main objectives of the research presented in the article?",
	},
	{
		ID:          "results",
		Label:       "Main Results",
		Instruction: "What are the main results and findings presented in the article?",
	},
	{
		ID:          "critical_evaluation",
		Label:       "Critical Evaluation",
		Instruction: "Critically evaluate the methods and results presented. What are their strengths and weaknesses?",
	},
	{
		ID:          "literature_context",
		Label:       "Literature Context",
		Instruction: "How does this article fit within the existing scientific literature? What novel contributions does it make?",
	},
	{
		ID:          "implications",
		Label:       "Implications and Future Directions",
		Instruction: "What are the implications of these findings and what future lines of research does the article suggest?",
	},
	{
		ID:          "conclusions",
		Label:       "Conclusions",
		Instruction: "Summarize the main conclusions of the article and their scientific relevance.",
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultSteps)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in steps: %v", err))
	}
	return c
}

// New validates steps and returns a catalog holding a copy of them.
func New(steps []domain.AnalysisStep) (*Catalog, error) {
	if len(steps) == 0 {
		return nil, domain.ValidationError("catalog must contain at least one step", nil)
	}

	c := &Catalog{
		steps: make([]domain.AnalysisStep, 0, len(steps)),
		index: make(map[string]int, len(steps)),
	}

	for i, s := range steps {
		s.ID = strings.TrimSpace(s.ID)
		switch {
		case s.ID == "":
			return nil, domain.ValidationError(fmt.Sprintf("step %d has an empty id", i+1), nil)
		case strings.TrimSpace(s.Label) == "":
			return nil, domain.ValidationError(fmt.Sprintf("step %q has an empty label", s.ID), nil)
		case strings.TrimSpace(s.Instruction) == "":
			return nil, domain.ValidationError(fmt.Sprintf("step %q has an empty instruction", s.ID), nil)
		}
		if _, dup := c.index[s.ID]; dup {
			return nil, domain.ValidationError(fmt.Sprintf("duplicate step id %q", s.ID), nil)
		}
		c.index[s.ID] = len(c.steps)
		c.steps = append(c.steps, s)
	}

	return c, nil
}

// Load reads a catalog from a YAML file of the form:
//
//	steps:
//	  - id: summary
//	    label: Summary
//	    instruction: Summarize the article.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("read catalog file %s", path), err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("parse catalog file %s", path), err)
	}

	return New(f.Steps)
}

// LoadOrDefault loads path when it is set, otherwise returns Default.
func LoadOrDefault(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

// Len returns the number of steps.
func (c *Catalog) Len() int {
	return len(c.steps)
}

// Steps returns a copy of the steps in order.
func (c *Catalog) Steps() []domain.AnalysisStep {
	out := make([]domain.AnalysisStep, len(c.steps))
	copy(out, c.steps)
	return out
}

// Step returns the i-th step (0-based).
func (c *Catalog) Step(i int) domain.AnalysisStep {
	return c.steps[i]
}

// Lookup finds a step by id.
func (c *Catalog) Lookup(id string) (domain.AnalysisStep, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.AnalysisStep{}, false
	}
	return c.steps[i], true
}

// IDs returns the step ids in order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.steps))
	for i, s := range c.steps {
		ids[i] = s.ID
	}
	return ids
}
