package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Core.RetryCap != 3 || cfg.Core.DefaultRowLimit != 200 || cfg.Core.MaxRowLimit != 1000 {
		t.Fatalf("core defaults = %+v", cfg.Core)
	}
	if cfg.Core.AllowWindowFunctions || cfg.Core.AllowUnenforcedEngines {
		t.Fatal("permissive knobs must default off")
	}
	if cfg.Engines.Default != "sqlite" {
		t.Fatalf("default engine = %q", cfg.Engines.Default)
	}
	if cfg.Audit.Sink != "json" {
		t.Fatalf("audit sink = %q", cfg.Audit.Sink)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
core:
  retry_cap: 5
  timeout_ms: 2000
engines:
  default: duckdb
  duckdb:
    dsn: /data/stations.duckdb
audit:
  sink: sqlite
  path: /tmp/audit.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Core.RetryCap != 5 {
		t.Fatalf("retry cap = %d", cfg.Core.RetryCap)
	}
	if cfg.Core.Timeout().Milliseconds() != 2000 {
		t.Fatalf("timeout = %v", cfg.Core.Timeout())
	}
	// Unset keys keep their defaults.
	if cfg.Core.DefaultRowLimit != 200 {
		t.Fatalf("default row limit = %d", cfg.Core.DefaultRowLimit)
	}
	dsn, err := cfg.Engines.DSNFor(cfg.Engines.Default)
	if err != nil || dsn != "/data/stations.duckdb" {
		t.Fatalf("dsn = %q, err = %v", dsn, err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zero retry cap": `
core:
  retry_cap: 0
`,
		"limit inversion": `
core:
  default_row_limit: 500
  max_row_limit: 100
`,
		"unknown sink": `
audit:
  sink: kafka
`,
		"unknown generator mode": `
generator:
  mode: psychic
`,
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: bad config accepted", name)
		}
	}
}
