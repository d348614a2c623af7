package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/evaluator"
)

func (c *CLI) newEvalCmd() *cobra.Command {
	var (
		casesPath   string
		repeats     int
		parallelism int
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure answer consistency over repeated runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEval(cmd, casesPath, repeats, parallelism)
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "", "case file (.yaml or .jsonl)")
	cmd.Flags().IntVar(&repeats, "repeats", 5, "runs per question")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "concurrent runs")
	cmd.MarkFlagRequired("cases")
	return cmd
}

func (c *CLI) runEval(cmd *cobra.Command, casesPath string, repeats, parallelism int) error {
	cases, err := evaluator.LoadCases(casesPath)
	if err != nil {
		return err
	}

	p, err := c.buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ev := evaluator.New(p.orch, evaluator.Options{
		Repeats:       repeats,
		Parallelism:   parallelism,
		Deterministic: c.cfg.Generator.Deterministic,
	})
	rep, err := ev.Evaluate(cmd.Context(), cases)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	for _, cr := range rep.Cases {
		c.printf("%-24s exec %.2f  correct %.2f  sql %.2f  result %.2f\n",
			cr.CaseID,
			cr.Metrics.ExecSuccessRate, cr.Metrics.Correctness,
			cr.Metrics.SQLConsistency, cr.Metrics.ResultConsistency)
		for _, f := range cr.Failures {
			c.printf("%-24s   saw: %s\n", "", f)
		}
	}
	c.printf("\naggregate (%d cases, %d runs each, deterministic=%t):\n",
		len(rep.Cases), rep.Repeats, rep.Deterministic)
	c.printf("  exec %.4f  correct %.4f  sql %.4f  result %.4f\n",
		rep.Aggregate.ExecSuccessRate, rep.Aggregate.Correctness,
		rep.Aggregate.SQLConsistency, rep.Aggregate.ResultConsistency)
	return nil
}
