package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/report"
)

func (c *CLI) newReportCmd() *cobra.Command {
	var (
		itemsPath   string
		outDir      string
		title       string
		previewRows int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run a question list and write a Markdown report plus a JSON run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReport(cmd, itemsPath, outDir, title, previewRows)
		},
	}
	cmd.Flags().StringVar(&itemsPath, "items", "", "YAML question list")
	cmd.Flags().StringVar(&outDir, "out", "reports", "output directory")
	cmd.Flags().StringVar(&title, "title", "Analytics Report", "report title")
	cmd.Flags().IntVar(&previewRows, "preview-rows", 15, "rows per preview table")
	cmd.MarkFlagRequired("items")
	return cmd
}

func (c *CLI) runReport(cmd *cobra.Command, itemsPath, outDir, title string, previewRows int) error {
	items, err := report.LoadItems(itemsPath)
	if err != nil {
		return err
	}

	p, err := c.buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := report.Generate(cmd.Context(), p.orch, items, report.Config{
		Title:       title,
		PreviewRows: previewRows,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	mdPath := filepath.Join(outDir, "report.md")
	jsonPath := filepath.Join(outDir, "run.json")
	if err := res.WriteFiles(mdPath, jsonPath); err != nil {
		return err
	}
	c.printf("wrote %s and %s\n", mdPath, jsonPath)
	return nil
}
