// Package duckdb provides the DuckDB engine, opened with
// access_mode=read_only so the database rejects writes at the
// connection level.
package duckdb

import (
	"fmt"
	"strings"

	"github.com/askdb-labs/askdb/internal/executor"

	_ "github.com/marcboeker/go-duckdb"
)

const name = "duckdb"

func init() {
	executor.Register(name, func(dsn string) (executor.Engine, error) {
		return Open(dsn)
	})
}

// Open opens a DuckDB database file read-only. In-memory databases are
// refused: a fresh in-memory database has nothing to query and
// read-only mode cannot apply to it.
func Open(path string) (*executor.SQLEngine, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("duckdb engine: a database file path is required")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return executor.OpenSQLEngine("duckdb", path+sep+"access_mode=read_only", name, true)
}
