// Package report renders run results into a plain-text document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical/article-analyzer/internal/catalog"
	"github.com/spherical/article-analyzer/internal/domain"
)

const (
	ruleWidth  = 80
	title      = "ARTICLE ANALYSIS REPORT"
	dateLayout = "2006-01-02 15:04:05"
	fileLayout = "20060102_150405"
)

// Metadata describes the run being rendered.
type Metadata struct {
	Source    string
	Timestamp time.Time
	Model     string
}

// section is one report heading, keyed by step id.
type section struct {
	id    string
	label string
}

// Assembler renders results in a fixed section order.
type Assembler struct {
	sections []section
}

// NewAssembler creates an assembler bound to a catalog.
func NewAssembler(cat *catalog.Catalog) *Assembler {
	steps := cat.Steps()
	sections := make([]section, 0, len(steps))
	for _, step := range steps {
		sections = append(sections, section{id: step.ID, label: step.Label})
	}
	return &Assembler{sections: sections}
}

// NewResultsAssembler creates an assembler whose sections are the entries of
// results in stored order. Stored runs render with it, so a run made with a
// different catalog keeps all of its sections.
func NewResultsAssembler(results *domain.RunResults) *Assembler {
	entries := results.Entries()
	sections := make([]section, 0, len(entries))
	for _, e := range entries {
		label := e.Label
		if strings.TrimSpace(label) == "" {
			label = e.StepID
		}
		sections = append(sections, section{id: e.StepID, label: label})
	}
	return &Assembler{sections: sections}
}

// Render produces the report text. Output depends only on its inputs.
// Sections follow the assembler's order; steps missing from results are skipped.
func (a *Assembler) Render(results *domain.RunResults, meta Metadata) string {
	banner := strings.Repeat("=", ruleWidth)
	rule := strings.Repeat("-", ruleWidth)

	lines := []string{
		banner,
		title,
		banner,
		"",
		"Date: " + meta.Timestamp.Format(dateLayout),
		"File: " + sourceName(meta.Source),
	}
	if meta.Model != "" {
		lines = append(lines, "Model: "+meta.Model)
	}
	if failed := a.countFailed(results); failed > 0 {
		lines = append(lines, fmt.Sprintf("Failed steps: %d of %d", failed, len(a.sections)))
	}
	lines = append(lines, "", "")

	for _, sec := range a.sections {
		text, ok := results.Get(sec.id)
		if !ok {
			continue
		}
		lines = append(lines,
			"",
			rule,
			"",
			strings.ToUpper(sec.label),
			rule,
			"",
			text,
			"",
		)
	}

	return strings.Join(lines, "\n")
}

func (a *Assembler) countFailed(results *domain.RunResults) int {
	failed := 0
	for _, sec := range a.sections {
		if r, ok := results.Result(sec.id); ok && r.Failed {
			failed++
		}
	}
	return failed
}

func sourceName(source string) string {
	if source == "" {
		return "-"
	}
	return filepath.Base(source)
}

// DefaultFileName returns the suggested report file name for a run at t.
func DefaultFileName(t time.Time) string {
	return fmt.Sprintf("analysis_%s.txt", t.Format(fileLayout))
}

// Save writes content to path as UTF-8 text, creating parent directories.
func Save(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return domain.IOError(fmt.Sprintf("create directory %s", dir), err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return domain.IOError(fmt.Sprintf("write report %s", path), err)
	}
	return nil
}
