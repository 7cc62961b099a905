package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spherical/article-analyzer/cmd/article-analyzer/ui"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/report"
)

var (
	analyzeOpts   overrides
	analyzeOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pdf>",
	Short: "Run every analysis step over a PDF article and save the report",
	Long: `Extract the article text from a PDF, run each analysis step of the catalog in
order and write the combined report. Steps that fail are recorded in the report
as "Error: ..." sections; the run itself still completes.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "report file path (default: <output dir>/analysis_<timestamp>.txt)")
	addModelFlags(analyzeCmd, &analyzeOpts)
	analyzeCmd.Flags().BoolVar(&analyzeOpts.noHistory, "no-history", false, "do not record the run in history")
}

// addModelFlags registers the flags that override model settings.
func addModelFlags(cmd *cobra.Command, o *overrides) {
	cmd.Flags().StringVar(&o.apiKey, "api-key", "", "API key (overrides OPENAI_API_KEY)")
	cmd.Flags().StringVar(&o.model, "model", "", "model name (overrides OPENAI_MODEL)")
	cmd.Flags().IntVar(&o.maxTokens, "max-tokens", 0, "maximum tokens per answer (overrides MAX_TOKENS)")
	cmd.Flags().StringVar(&o.catalogPath, "catalog", "", "YAML file with custom analysis steps")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, analyzeOpts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	ui.Section(fmt.Sprintf("Analyzing %s", filepath.Base(path)))

	spin := ui.NewSpinner("Extracting text from PDF...")
	spin.Start()
	text, err := a.svc.ExtractText(ctx, path)
	spin.Stop()
	if err != nil {
		return err
	}
	ui.Success("Extracted %d characters", len([]rune(text)))

	total := a.svc.Catalog().Len()
	bar := ui.NewProgressBar(total, "Starting analysis")
	run, err := a.svc.AnalyzeText(ctx, path, text, func(e domain.ProgressEvent) {
		bar.Set(e.Index-1, fmt.Sprintf("[%d/%d] %s", e.Index, e.Total, e.Label))
	})
	bar.Set(total, "Analysis complete")
	bar.Finish()
	if err != nil {
		return err
	}

	ui.Section("Results")
	for _, r := range run.Results.Entries() {
		ui.StepStatus(r.Label, r.Failed, ui.Truncate(r.Text, 80))
	}

	outPath := analyzeOutput
	if outPath == "" {
		outPath = filepath.Join(a.cfg.Output.Dir, report.DefaultFileName(run.CreatedAt))
	}
	if err := report.Save(outPath, a.svc.Render(run)); err != nil {
		return err
	}

	ui.Message("")
	ui.Success("Report saved to %s", outPath)
	if failed := run.Results.FailedCount(); failed > 0 {
		ui.Warning("%d of %d steps failed", failed, run.Results.Len())
	}
	if usage := run.Results.TotalUsage(); usage.PromptTokens+usage.CompletionTokens > 0 {
		ui.Info("Tokens used: %d prompt, %d completion", usage.PromptTokens, usage.CompletionTokens)
	}
	if run.Recorded {
		ui.Info("Run recorded as %s", run.ID)
	}
	ui.Info("Completed in %s", ui.FormatDuration(run.Duration))

	return nil
}
