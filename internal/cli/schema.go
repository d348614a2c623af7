package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func (c *CLI) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the schema snapshot the generator is grounded on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchema(cmd)
		},
	}
	return cmd
}

func (c *CLI) runSchema(cmd *cobra.Command) error {
	eng, err := c.buildEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	svc, err := c.buildSchemaService(eng)
	if err != nil {
		return err
	}
	d, err := svc.Snapshot(cmd.Context())
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(d)
	}
	c.printf("schema version %s\n\n", d.Version[:12])
	c.println(d.PromptBlob(0))
	return nil
}
