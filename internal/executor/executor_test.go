package executor_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/askdb-labs/askdb/internal/errors"
	"github.com/askdb-labs/askdb/internal/executor"
	"github.com/askdb-labs/askdb/internal/executor/sqlite"
)

// fixture creates a seeded SQLite database and returns its path.
func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.db")
	eng, err := sqlite.OpenWritable(path)
	if err != nil {
		t.Fatalf("open writable fixture: %v", err)
	}
	defer eng.Close()

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE fuel_stations (id INTEGER PRIMARY KEY, name TEXT, state TEXT)`,
		`INSERT INTO fuel_stations (name, state) VALUES
			('Alpha', 'CA'), ('Bravo', 'CA'), ('Charlie', 'NY'),
			('Delta', 'NY'), ('Echo', 'TX')`,
	}
	for _, s := range stmts {
		if _, err := eng.DB().ExecContext(ctx, s); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	return path
}

func openReadOnly(t *testing.T, path string, opts executor.Options) *executor.Executor {
	t.Helper()
	eng, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open read-only engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	ex, err := executor.New(eng, opts)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return ex
}

func TestEngineBoundsConnectionPool(t *testing.T) {
	eng, err := sqlite.Open(fixture(t))
	if err != nil {
		t.Fatalf("open read-only engine: %v", err)
	}
	defer eng.Close()

	if got := eng.DB().Stats().MaxOpenConnections; got != 10 {
		t.Fatalf("max open connections = %d, want 10", got)
	}
}

func TestExecuteSelect(t *testing.T) {
	ex := openReadOnly(t, fixture(t), executor.DefaultOptions())
	out, execErr := ex.Execute(context.Background(),
		"SELECT state, COUNT(*) AS n FROM fuel_stations GROUP BY state ORDER BY state")
	if execErr != nil {
		t.Fatalf("execute: %v", execErr)
	}
	if out.RowCount != 3 {
		t.Fatalf("row count = %d, want 3", out.RowCount)
	}
	if len(out.Columns) != 2 || out.Columns[0] != "state" || out.Columns[1] != "n" {
		t.Fatalf("columns = %v", out.Columns)
	}
	if out.Truncated {
		t.Fatal("small result marked truncated")
	}
}

func TestExecuteRejectsWrites(t *testing.T) {
	ex := openReadOnly(t, fixture(t), executor.DefaultOptions())
	_, execErr := ex.Execute(context.Background(),
		"INSERT INTO fuel_stations (name, state) VALUES ('Mallory', 'WA')")
	if execErr == nil {
		t.Fatal("write statement succeeded on a read-only connection")
	}
	if execErr.Category != errors.CategoryExecutionError {
		t.Fatalf("category = %s, want execution_error", execErr.Category)
	}
}

func TestExecuteRowCapTruncates(t *testing.T) {
	opts := executor.DefaultOptions()
	opts.RowCap = 2
	ex := openReadOnly(t, fixture(t), opts)
	out, execErr := ex.Execute(context.Background(), "SELECT name FROM fuel_stations")
	if execErr != nil {
		t.Fatalf("execute: %v", execErr)
	}
	if out.RowCount != 2 || len(out.Rows) != 2 {
		t.Fatalf("row count = %d, want 2", out.RowCount)
	}
	if !out.Truncated {
		t.Fatal("capped result not marked truncated")
	}
}

func TestExecuteTimeout(t *testing.T) {
	opts := executor.DefaultOptions()
	opts.Timeout = time.Nanosecond
	ex := openReadOnly(t, fixture(t), opts)
	_, execErr := ex.Execute(context.Background(), "SELECT * FROM fuel_stations")
	if execErr == nil {
		t.Fatal("execution under a nanosecond budget succeeded")
	}
	if execErr.Category != errors.CategoryTimeout {
		t.Fatalf("category = %s, want timeout", execErr.Category)
	}
}

func TestExecuteUnknownColumnIsExecutionError(t *testing.T) {
	ex := openReadOnly(t, fixture(t), executor.DefaultOptions())
	_, execErr := ex.Execute(context.Background(), "SELECT nope FROM fuel_stations")
	if execErr == nil || execErr.Category != errors.CategoryExecutionError {
		t.Fatalf("want execution_error, got %v", execErr)
	}
}

type unenforcedEngine struct{}

func (unenforcedEngine) Name() string           { return "fake" }
func (unenforcedEngine) ReadOnlyEnforced() bool { return false }
func (unenforcedEngine) QueryContext(context.Context, string) (*sql.Rows, error) {
	return nil, nil
}
func (unenforcedEngine) Ping(context.Context) error { return nil }
func (unenforcedEngine) Close() error               { return nil }

func TestNewRefusesUnenforcedEngine(t *testing.T) {
	if _, err := executor.New(unenforcedEngine{}, executor.DefaultOptions()); err == nil {
		t.Fatal("unenforced engine accepted without opt-in")
	}
	opts := executor.DefaultOptions()
	opts.AllowUnenforced = true
	if _, err := executor.New(unenforcedEngine{}, opts); err != nil {
		t.Fatalf("opt-in should accept unenforced engine: %v", err)
	}
}

func TestRegistryHasSQLite(t *testing.T) {
	found := false
	for _, name := range executor.DefaultRegistry.Engines() {
		if name == "sqlite" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sqlite missing from registry: %v", executor.DefaultRegistry.Engines())
	}
}
