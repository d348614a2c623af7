package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/audit"
)

func (c *CLI) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Aggregate session outcomes from the audit sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAuditSummary(cmd)
		},
	})
	return cmd
}

func (c *CLI) runAuditSummary(cmd *cobra.Command) error {
	logger, err := c.buildAuditor()
	if err != nil {
		return err
	}
	defer logger.Close()

	sum, ok := logger.(audit.Summarizer)
	if !ok {
		return fmt.Errorf("audit sink %q cannot be queried; use sqlite or postgres", c.cfg.Audit.Sink)
	}
	s, err := sum.Summarize(cmd.Context())
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(s)
	}

	c.printf("sessions: %d   attempts: %d   avg duration: %dms\n", s.Sessions, s.Attempts, s.AvgTimeMS)
	statuses := make([]string, 0, len(s.ByStatus))
	for st := range s.ByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		c.printf("  %-20s %d\n", st, s.ByStatus[st])
	}
	return nil
}
