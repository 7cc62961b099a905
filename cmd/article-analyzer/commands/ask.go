package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/article-analyzer/cmd/article-analyzer/ui"
)

var (
	askOpts   overrides
	askPrompt string
	askLabel  string
)

var askCmd = &cobra.Command{
	Use:   "ask <pdf>",
	Short: "Run a single custom instruction over a PDF article",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askPrompt, "prompt", "p", "", "instruction to run over the article (required)")
	askCmd.Flags().StringVar(&askLabel, "label", "", "label for the answer (default: Custom Analysis)")
	_ = askCmd.MarkFlagRequired("prompt")
	addModelFlags(askCmd, &askOpts)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	askOpts.noHistory = true
	a, err := newApp(ctx, askOpts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	spin := ui.NewSpinner("Analyzing article...")
	spin.Start()
	result, err := a.svc.Ask(ctx, args[0], askPrompt, askLabel)
	spin.Stop()
	if err != nil {
		return err
	}

	ui.Section(result.Label)
	ui.Message("%s", result.Text)
	return nil
}
