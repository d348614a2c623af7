package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/sqlguard"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [sql]",
		Short: "Validate and defensively rewrite a SQL statement without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(strings.Join(args, " "))
		},
	}
	return cmd
}

type validateOutput struct {
	OK       bool       `json:"ok"`
	Kind     string     `json:"kind"`
	Rules    []ruleLine `json:"rules"`
	SQL      string     `json:"sql,omitempty"`
	Rewrites []string   `json:"rewrites,omitempty"`
}

type ruleLine struct {
	RuleID string `json:"rule_id"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

func (c *CLI) runValidate(sql string) error {
	rules := c.buildRules()
	v := sqlguard.NewValidator(rules).Validate(sql)

	out := validateOutput{OK: v.OK(), Kind: string(v.Kind)}
	for _, r := range v.Decision.Rules {
		out.Rules = append(out.Rules, ruleLine{RuleID: r.RuleID, Passed: r.Passed, Reason: r.Reason})
	}

	if v.OK() {
		rw, rwErr := sqlguard.NewRewriter(rules).Apply(v)
		if rwErr != nil {
			return rwErr
		}
		out.SQL = rw.SQL
		out.Rewrites = rw.Applied
	} else {
		c.exitCode = ExitValidation
	}

	if c.jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	for _, r := range out.Rules {
		mark := "✓"
		if !r.Passed {
			mark = "✗"
		}
		c.printf("%s %s", mark, r.RuleID)
		if r.Reason != "" {
			c.printf(": %s", r.Reason)
		}
		c.printf("\n")
	}
	if out.OK {
		c.printf("\n%s\n", out.SQL)
		if len(out.Rewrites) > 0 {
			c.printf("(rewrites: %s)\n", strings.Join(out.Rewrites, ", "))
		}
	}
	return nil
}
