package commands

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/spherical/article-analyzer/cmd/article-analyzer/ui"
	"github.com/spherical/article-analyzer/internal/pdf"
)

var infoCmd = &cobra.Command{
	Use:   "info <pdf>",
	Short: "Show page count, size and metadata of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := pdf.NewExtractor(nil).Info(args[0])
	if err != nil {
		return err
	}

	ui.Section(info.Path)
	ui.Message("Pages: %d", info.Pages)
	ui.Message("Size:  %.2f KB", info.SizeKB)

	if len(info.Metadata) == 0 {
		return nil
	}

	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, info.Metadata[k]})
	}
	ui.Message("")
	ui.Table([]string{"KEY", "VALUE"}, rows)
	return nil
}
