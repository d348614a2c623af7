// Package snowflake provides the Snowflake engine. Like Trino, the
// driver has no connection-level read-only mode; the engine reports
// itself as unenforced.
package snowflake

import (
	"fmt"
	"strings"

	"github.com/askdb-labs/askdb/internal/executor"

	_ "github.com/snowflakedb/gosnowflake"
)

const name = "snowflake"

func init() {
	executor.Register(name, func(dsn string) (executor.Engine, error) {
		return Open(dsn)
	})
}

// Open opens a Snowflake pool from the driver's native DSN form.
func Open(dsn string) (*executor.SQLEngine, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("snowflake engine: empty DSN")
	}
	return executor.OpenSQLEngine("snowflake", dsn, name, false)
}
