// Package trino provides the Trino engine. The driver offers no
// connection-level read-only mode, so the engine reports itself as
// unenforced and the executor refuses it unless the operator opted in.
package trino

import (
	"fmt"
	"strings"

	"github.com/askdb-labs/askdb/internal/executor"

	_ "github.com/trinodb/trino-go-client/trino"
)

const name = "trino"

func init() {
	executor.Register(name, func(dsn string) (executor.Engine, error) {
		return Open(dsn)
	})
}

// Open opens a Trino pool. The DSN is the driver's native http(s) form.
func Open(dsn string) (*executor.SQLEngine, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("trino engine: empty DSN")
	}
	return executor.OpenSQLEngine("trino", dsn, name, false)
}
