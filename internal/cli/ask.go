package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/report"
	"github.com/askdb-labs/askdb/internal/session"
)

func (c *CLI) newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a natural-language question with guarded SQL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAsk(cmd, strings.Join(args, " "))
		},
	}
	return cmd
}

// askOutput is the machine-readable result shape.
type askOutput struct {
	SessionID  string   `json:"session_id"`
	Status     string   `json:"status"`
	StopReason string   `json:"stop_reason,omitempty"`
	Attempts   int      `json:"attempts"`
	SQL        string   `json:"sql,omitempty"`
	Columns    []string `json:"columns,omitempty"`
	Rows       [][]any  `json:"rows,omitempty"`
	RowCount   int      `json:"row_count"`
	Truncated  bool     `json:"truncated,omitempty"`
	ElapsedMS  int64    `json:"elapsed_ms,omitempty"`
}

func (c *CLI) runAsk(cmd *cobra.Command, question string) error {
	p, err := c.buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	s, err := p.orch.Run(cmd.Context(), question)
	if err != nil {
		return err
	}
	c.exitCode = s.Status.ExitCode()

	if c.jsonOutput {
		out := askOutput{
			SessionID:  s.ID,
			Status:     string(s.Status),
			StopReason: s.StopReason,
			Attempts:   len(s.Attempts),
			SQL:        s.FinalSQL,
		}
		if s.Result != nil {
			out.Columns = s.Result.Columns
			out.Rows = s.Result.Rows
			out.RowCount = s.Result.RowCount
			out.Truncated = s.Result.Truncated
			out.ElapsedMS = s.Result.ElapsedMS
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if s.Status != session.StatusSuccess {
		c.errorf("✗ %s (%s)\n", s.Status, s.StopReason)
		if e := s.LastError(); e != nil && e.Suggestion != "" {
			c.errorf("  Suggestion: %s\n", e.Suggestion)
		}
		return nil
	}

	c.debugf("session %s succeeded in %d attempt(s)\n", s.ID, len(s.Attempts))
	c.printf("%s\n\n", s.FinalSQL)
	fmt.Println(report.MarkdownTable(s.Result.Columns, s.Result.Rows, 25))
	if s.Result.Truncated {
		c.printf("\n(result truncated at %d rows)\n", s.Result.RowCount)
	}
	return nil
}
