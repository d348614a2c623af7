// Package postgres provides the PostgreSQL engine. Every connection
// sets default_transaction_read_only=on through startup options, so the
// server rejects writes regardless of what reaches it.
package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/askdb-labs/askdb/internal/executor"

	_ "github.com/lib/pq"
)

const name = "postgres"

const readOnlyOption = "-c default_transaction_read_only=on"

func init() {
	executor.Register(name, func(dsn string) (executor.Engine, error) {
		return Open(dsn)
	})
}

// Open opens a PostgreSQL pool with read-only forced on. Both URL and
// key/value DSN forms are accepted.
func Open(dsn string) (*executor.SQLEngine, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres engine: empty DSN")
	}
	withRO, err := forceReadOnly(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres engine: %w", err)
	}
	return executor.OpenSQLEngine("postgres", withRO, name, true)
}

func forceReadOnly(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", err
		}
		q := u.Query()
		q.Set("options", readOnlyOption)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	if strings.Contains(dsn, "options=") {
		return "", fmt.Errorf("DSN already sets options; remove it so read-only can be pinned")
	}
	return dsn + " options='" + readOnlyOption + "'", nil
}
