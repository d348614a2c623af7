package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"version":    Version,
					"git_commit": GitCommit,
					"build_date": BuildDate,
				})
			}
			c.printf("askdb %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}
