package cli

import (
	"github.com/spf13/cobra"

	"github.com/askdb-labs/askdb/internal/executor"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check engine connectivity and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd)
		},
	}
	return cmd
}

func (c *CLI) runDoctor(cmd *cobra.Command) error {
	healthy := true
	check := func(name string, err error) {
		if err != nil {
			healthy = false
			c.printf("✗ %s: %v\n", name, err)
			return
		}
		c.printf("✓ %s\n", name)
	}

	c.printf("registered engines: %v\n", executor.DefaultRegistry.Engines())

	eng, err := c.buildEngine()
	check("engine open ("+c.cfg.Engines.Default+")", err)
	if err == nil {
		defer eng.Close()
		check("engine ping", eng.Ping(cmd.Context()))
		if !eng.ReadOnlyEnforced() {
			if c.cfg.Core.AllowUnenforcedEngines {
				c.printf("! engine %s cannot enforce read-only connections (allowed by config)\n", eng.Name())
			} else {
				healthy = false
				c.printf("✗ engine %s cannot enforce read-only connections\n", eng.Name())
			}
		}
		_, schemaErr := c.buildSchemaService(eng)
		check("schema introspection", schemaErr)
	}

	_, genErr := c.buildGenerator()
	check("generator config ("+c.cfg.Generator.Mode+")", genErr)

	auditor, auditErr := c.buildAuditor()
	check("audit sink ("+c.cfg.Audit.Sink+")", auditErr)
	if auditErr == nil {
		auditor.Close()
	}

	if !healthy {
		c.exitCode = ExitInternal
	}
	return nil
}
