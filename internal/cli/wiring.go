package cli

import (
	"fmt"

	"github.com/askdb-labs/askdb/internal/audit"
	"github.com/askdb-labs/askdb/internal/executor"
	"github.com/askdb-labs/askdb/internal/generator"
	"github.com/askdb-labs/askdb/internal/policy"
	"github.com/askdb-labs/askdb/internal/schema"
	"github.com/askdb-labs/askdb/internal/session"
	"github.com/askdb-labs/askdb/internal/sqlguard"

	// Engines available to this binary.
	_ "github.com/askdb-labs/askdb/internal/executor/duckdb"
	_ "github.com/askdb-labs/askdb/internal/executor/postgres"
	_ "github.com/askdb-labs/askdb/internal/executor/snowflake"
	_ "github.com/askdb-labs/askdb/internal/executor/sqlite"
	_ "github.com/askdb-labs/askdb/internal/executor/trino"
)

func (c *CLI) buildRules() *policy.RuleSet {
	rules := policy.Default()
	rules.DefaultRowLimit = c.cfg.Core.DefaultRowLimit
	rules.MaxRowLimit = c.cfg.Core.MaxRowLimit
	rules.AllowWindowFunctions = c.cfg.Core.AllowWindowFunctions
	return rules
}

func (c *CLI) buildEngine() (executor.Engine, error) {
	name := c.cfg.Engines.Default
	dsn, err := c.cfg.Engines.DSNFor(name)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("engine %s has no connection configured (engines.%s)", name, name)
	}
	c.debugf("opening engine %s\n", name)
	return executor.DefaultRegistry.Open(name, dsn)
}

func (c *CLI) buildExecutor(eng executor.Engine) (*executor.Executor, error) {
	return executor.New(eng, executor.Options{
		Timeout:         c.cfg.Core.Timeout(),
		RowCap:          c.cfg.Core.RowCap,
		AllowUnenforced: c.cfg.Core.AllowUnenforcedEngines,
	})
}

// buildSchemaService wires introspection. Only SQLite has a built-in
// provider; other engines need one supplied out of band.
func (c *CLI) buildSchemaService(eng executor.Engine) (*schema.Service, error) {
	sqlEng, ok := eng.(*executor.SQLEngine)
	if !ok || eng.Name() != "sqlite" {
		return nil, fmt.Errorf(
			"schema introspection is only built in for the sqlite engine; %s needs an external schema provider",
			eng.Name())
	}
	return schema.NewService(schema.NewSQLiteProvider(sqlEng.DB())), nil
}

func (c *CLI) buildGenerator() (generator.Generator, error) {
	gc := c.cfg.Generator
	switch gc.Mode {
	case "http":
		if gc.Endpoint == "" {
			return nil, fmt.Errorf("generator.endpoint is required in http mode")
		}
		return generator.NewHTTP(generator.HTTPConfig{
			Endpoint:      gc.Endpoint,
			Token:         gc.Token,
			Timeout:       gc.Timeout(),
			Deterministic: gc.Deterministic,
		}), nil
	case "scripted":
		if len(gc.Script) == 0 {
			return nil, fmt.Errorf("generator.script is empty in scripted mode")
		}
		return generator.NewScripted(gc.Script...), nil
	default:
		return nil, fmt.Errorf("unknown generator mode %q", gc.Mode)
	}
}

func (c *CLI) buildAuditor() (audit.Logger, error) {
	ac := c.cfg.Audit
	switch ac.Sink {
	case "none":
		return audit.Nop{}, nil
	case "json":
		return audit.OpenJSONFile(ac.Path)
	case "sqlite":
		return audit.NewSQLiteLogger(ac.Path)
	case "postgres":
		return audit.NewPostgresLogger(ac.DSN)
	default:
		return nil, fmt.Errorf("unknown audit sink %q", ac.Sink)
	}
}

// pipeline bundles everything a session run needs, plus the cleanup.
type pipeline struct {
	orch    *session.Orchestrator
	engine  executor.Engine
	schemas *schema.Service
	auditor audit.Logger
}

func (p *pipeline) Close() {
	p.auditor.Close()
	p.engine.Close()
}

func (c *CLI) buildPipeline() (*pipeline, error) {
	eng, err := c.buildEngine()
	if err != nil {
		return nil, err
	}

	exec, err := c.buildExecutor(eng)
	if err != nil {
		eng.Close()
		return nil, err
	}
	schemas, err := c.buildSchemaService(eng)
	if err != nil {
		eng.Close()
		return nil, err
	}
	gen, err := c.buildGenerator()
	if err != nil {
		eng.Close()
		return nil, err
	}
	auditor, err := c.buildAuditor()
	if err != nil {
		eng.Close()
		return nil, err
	}

	rules := c.buildRules()
	orch := session.New(gen,
		sqlguard.NewValidator(rules), sqlguard.NewRewriter(rules),
		exec, schemas, auditor,
		session.Config{
			RetryCap:           c.cfg.Core.RetryCap,
			GeneratorTimeout:   c.cfg.Generator.Timeout(),
			SchemaBlobMaxBytes: c.cfg.Core.SchemaBlobMaxBytes,
		})

	return &pipeline{orch: orch, engine: eng, schemas: schemas, auditor: auditor}, nil
}
