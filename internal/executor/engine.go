// Package executor runs validated, rewritten SQL against a database
// engine under a wall-clock budget and a row cap. Engines are thin and
// stateless; the executor owns classification, truncation, and cleanup.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Pool bounds applied to every engine. Concurrent sessions share the
// pool; the cap keeps evaluator fan-out from opening unbounded
// connections against the server.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Engine is one database connection pool behind the trust boundary.
type Engine interface {
	// Name identifies the engine in audit records.
	Name() string

	// ReadOnlyEnforced reports whether writes are rejected at the
	// connection level. Engines that cannot enforce this are refused by
	// the executor unless explicitly allowed.
	ReadOnlyEnforced() bool

	// QueryContext runs one statement. Must honor ctx cancellation.
	QueryContext(ctx context.Context, query string) (*sql.Rows, error)

	// Ping checks reachability.
	Ping(ctx context.Context) error

	// Close releases the pool.
	Close() error
}

// Opener builds an engine from a connection string.
type Opener func(dsn string) (Engine, error)

// Registry maps engine names to openers. Engine packages register
// themselves from init, the same way database/sql drivers do.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Register adds an opener under a name. Last registration wins.
func (r *Registry) Register(name string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[name] = open
}

// Open builds an engine by name.
func (r *Registry) Open(name, dsn string) (Engine, error) {
	r.mu.RLock()
	open, ok := r.openers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (registered: %v)", name, r.Engines())
	}
	return open(dsn)
}

// Engines returns the registered engine names, sorted.
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.openers))
	for name := range r.openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry receives the engines linked into the binary.
var DefaultRegistry = NewRegistry()

// Register adds an opener to the default registry.
func Register(name string, open Opener) {
	DefaultRegistry.Register(name, open)
}

// SQLEngine is the common database/sql-backed engine implementation.
// Engine packages wrap it with their driver import and DSN shaping.
type SQLEngine struct {
	mu       sync.RWMutex
	db       *sql.DB
	name     string
	enforced bool
	closed   bool
}

// OpenSQLEngine opens a pool on the named driver. enforced declares
// whether the DSN pins the connection read-only; that claim belongs to
// the engine package shaping the DSN, not to callers.
func OpenSQLEngine(driver, dsn, name string, enforced bool) (*SQLEngine, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s engine: open: %w", name, err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return &SQLEngine{db: db, name: name, enforced: enforced}, nil
}

func (e *SQLEngine) Name() string { return e.name }

func (e *SQLEngine) ReadOnlyEnforced() bool { return e.enforced }

func (e *SQLEngine) QueryContext(ctx context.Context, query string) (*sql.Rows, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("%s engine: closed", e.name)
	}
	db := e.db
	e.mu.RUnlock()
	return db.QueryContext(ctx, query)
}

func (e *SQLEngine) Ping(ctx context.Context) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return fmt.Errorf("%s engine: closed", e.name)
	}
	db := e.db
	e.mu.RUnlock()
	return db.PingContext(ctx)
}

func (e *SQLEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// DB exposes the underlying pool for introspection callers that need
// raw access, like the schema loader. The read-only DSN still applies.
func (e *SQLEngine) DB() *sql.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}
