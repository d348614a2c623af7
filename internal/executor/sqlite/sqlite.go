// Package sqlite provides the SQLite engine. The DSN opens the file in
// read-only mode and pins query_only on every connection, so writes are
// rejected by the database itself, not just by policy.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/askdb-labs/askdb/internal/executor"

	_ "modernc.org/sqlite"
)

const name = "sqlite"

func init() {
	executor.Register(name, func(dsn string) (executor.Engine, error) {
		return Open(dsn)
	})
}

// Open opens a SQLite database file read-only. The dsn is a plain file
// path; query parameters the caller added are preserved.
func Open(path string) (*executor.SQLEngine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite engine: empty database path")
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)", path)
	return executor.OpenSQLEngine("sqlite", dsn, name, true)
}

// OpenWritable opens a SQLite file without the read-only pins. Only the
// audit sink and test fixtures use this; query execution never does.
func OpenWritable(path string) (*executor.SQLEngine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite engine: empty database path")
	}
	return executor.OpenSQLEngine("sqlite", path, name, false)
}
