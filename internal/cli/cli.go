// Package cli provides the command-line interface for askdb.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/config"
)

// Exit codes. Terminal session states map onto these one to one.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitExecution  = 2
	ExitSession    = 3
	ExitInternal   = 4
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	// Global flags
	configPath string
	engine     string
	jsonOutput bool
	quiet      bool
	debug      bool

	exitCode int
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		c.errorf("Error: %v\n", err)
		if c.exitCode != ExitSuccess {
			return c.exitCode
		}
		return ExitInternal
	}
	return c.exitCode
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "askdb",
		Short: "askdb - guarded natural-language querying over SQL databases",
		Long: `askdb turns questions into SQL and executes them behind a trust boundary.

Every candidate statement is parsed, checked against a read-only policy,
defensively row-limited, and executed on a read-only connection under a
time budget. Failures feed back to the generator for a bounded number of
retries, and every attempt is audited.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.askdb/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.engine, "engine", "", "query engine (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newAskCmd())
	cmd.AddCommand(c.newValidateCmd())
	cmd.AddCommand(c.newSchemaCmd())
	cmd.AddCommand(c.newEvalCmd())
	cmd.AddCommand(c.newReportCmd())
	cmd.AddCommand(c.newAuditCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.engine != "" {
		c.cfg.Engines.Default = c.engine
	}
	return nil
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Printf("[DEBUG] "+format, args...)
	}
}
