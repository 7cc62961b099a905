package commands

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/article-analyzer/cmd/article-analyzer/ui"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/history"
	"github.com/spherical/article-analyzer/internal/report"
	"github.com/spherical/article-analyzer/internal/service"
)

var (
	historyLimit  int
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded analysis runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print or save the report of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyShowCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "write the report to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, domain.ConfigError("history is disabled in configuration", nil)
	}
	return history.Open(cfg.History.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			ui.Truncate(r.Source, 40),
			r.Model,
			strconv.Itoa(r.FailedCount) + "/" + strconv.Itoa(r.StepCount),
			ui.FormatDuration(r.Duration),
		})
	}
	ui.Table([]string{"ID", "DATE", "SOURCE", "MODEL", "FAILED", "DURATION"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	stored, err := store.Get(context.Background(), args[0])
	if errors.Is(err, history.ErrNotFound) {
		return domain.InvalidInputError("no run with id "+args[0], err)
	}
	if err != nil {
		return err
	}

	content := service.RenderHistory(stored)

	if historyOutput == "" {
		ui.Message("%s", content)
		return nil
	}
	if err := report.Save(historyOutput, content); err != nil {
		return err
	}
	ui.Success("Report saved to %s", historyOutput)
	return nil
}
