package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/article-analyzer/cmd/article-analyzer/ui"
	"github.com/spherical/article-analyzer/internal/catalog"
)

var stepsCatalog string

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the analysis steps in run order",
	Args:  cobra.NoArgs,
	RunE:  runSteps,
}

func init() {
	stepsCmd.Flags().StringVar(&stepsCatalog, "catalog", "", "YAML file with custom analysis steps")
}

func runSteps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Catalog.Path
	if stepsCatalog != "" {
		path = stepsCatalog
	}

	cat, err := catalog.LoadOrDefault(path)
	if err != nil {
		return err
	}

	if ui.Verbose() {
		for i, step := range cat.Steps() {
			ui.Section(step.Label)
			ui.Message("%d. %s", i+1, step.ID)
			ui.Message("%s", step.Instruction)
		}
		return nil
	}

	rows := make([][]string, 0, cat.Len())
	for _, step := range cat.Steps() {
		rows = append(rows, []string{step.ID, step.Label})
	}
	ui.Table([]string{"ID", "LABEL"}, rows)
	return nil
}
