package schema_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/askdb-labs/askdb/internal/executor"
	"github.com/askdb-labs/askdb/internal/executor/sqlite"
	"github.com/askdb-labs/askdb/internal/schema"
)

func seeded(t *testing.T) (*executor.SQLEngine, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.db")
	eng, err := sqlite.OpenWritable(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	ctx := context.Background()
	for _, s := range []string{
		`CREATE TABLE states (code TEXT PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE fuel_stations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			state TEXT REFERENCES states(code)
		)`,
	} {
		if _, err := eng.DB().ExecContext(ctx, s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return eng, func() { eng.Close() }
}

func TestLoadIntrospectsTablesAndColumns(t *testing.T) {
	eng, done := seeded(t)
	defer done()

	d, err := schema.NewSQLiteProvider(eng.DB()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	names := d.TableNames()
	if len(names) != 2 || names[0] != "fuel_stations" || names[1] != "states" {
		t.Fatalf("tables = %v", names)
	}
	if d.Version == "" {
		t.Fatal("version hash missing")
	}

	stations := d.Tables[0]
	if len(stations.Columns) != 3 {
		t.Fatalf("fuel_stations columns = %v", stations.Columns)
	}
	if !stations.Columns[0].PrimaryKey {
		t.Fatal("id should be marked primary key")
	}
	if len(stations.ForeignKeys) != 1 || stations.ForeignKeys[0].RefTable != "states" {
		t.Fatalf("foreign keys = %v", stations.ForeignKeys)
	}
}

func TestVersionStableAcrossLoads(t *testing.T) {
	eng, done := seeded(t)
	defer done()

	p := schema.NewSQLiteProvider(eng.DB())
	a, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.Version != b.Version {
		t.Fatal("unchanged database produced different versions")
	}
}

func TestServiceDetectsDrift(t *testing.T) {
	eng, done := seeded(t)
	defer done()

	svc := schema.NewService(schema.NewSQLiteProvider(eng.DB()))
	ctx := context.Background()
	base, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	drifted, _, err := svc.Drifted(ctx, base.Version)
	if err != nil {
		t.Fatalf("drift check: %v", err)
	}
	if drifted {
		t.Fatal("unchanged schema reported as drifted")
	}

	if _, err := eng.DB().ExecContext(ctx, `CREATE TABLE intruder (x INTEGER)`); err != nil {
		t.Fatalf("alter schema: %v", err)
	}
	drifted, fresh, err := svc.Drifted(ctx, base.Version)
	if err != nil {
		t.Fatalf("drift check: %v", err)
	}
	if !drifted {
		t.Fatal("schema change not detected")
	}
	if len(fresh.TableNames()) != 3 {
		t.Fatalf("fresh snapshot tables = %v", fresh.TableNames())
	}
}

func TestPromptBlobTruncation(t *testing.T) {
	eng, done := seeded(t)
	defer done()

	d, err := schema.NewSQLiteProvider(eng.DB()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	full := d.PromptBlob(0)
	if !strings.Contains(full, "TABLE fuel_stations") || !strings.Contains(full, "references states.code") {
		t.Fatalf("blob missing structure:\n%s", full)
	}
	cut := d.PromptBlob(40)
	if !strings.HasSuffix(cut, "-- schema truncated") {
		t.Fatalf("truncated blob missing marker: %q", cut)
	}
}
