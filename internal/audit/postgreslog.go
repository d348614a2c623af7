package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_attempts (
	session_id         TEXT NOT NULL,
	attempt            INTEGER NOT NULL,
	timestamp          TIMESTAMPTZ NOT NULL,
	question           TEXT NOT NULL,
	raw_output         TEXT,
	sql_text           TEXT,
	rewritten_sql      TEXT,
	rules_json         JSONB,
	rewrites_json      JSONB,
	status             TEXT NOT NULL,
	error_reason       TEXT,
	row_count          INTEGER NOT NULL DEFAULT 0,
	truncated          BOOLEAN NOT NULL DEFAULT FALSE,
	elapsed_ms         BIGINT NOT NULL DEFAULT 0,
	result_fingerprint TEXT,
	schema_version     TEXT,
	engine             TEXT
);
CREATE TABLE IF NOT EXISTS audit_sessions (
	session_id     TEXT PRIMARY KEY,
	question       TEXT NOT NULL,
	status         TEXT NOT NULL,
	attempts       INTEGER NOT NULL,
	final_sql      TEXT,
	stop_reason    TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	duration_ms    BIGINT NOT NULL,
	schema_version TEXT,
	engine         TEXT
);`

// PostgresLogger persists audit records to PostgreSQL for deployments
// where audit data outlives the host running the queries.
type PostgresLogger struct {
	db *sql.DB
}

// NewPostgresLogger connects and initializes the audit tables.
func NewPostgresLogger(dsn string) (*PostgresLogger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init postgres schema: %w", err)
	}
	return &PostgresLogger{db: db}, nil
}

func (l *PostgresLogger) LogAttempt(ctx context.Context, rec *AttemptRecord) error {
	rules, rewrites, err := marshalDetails(rec)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_attempts (
			session_id, attempt, timestamp, question, raw_output, sql_text,
			rewritten_sql, rules_json, rewrites_json, status, error_reason,
			row_count, truncated, elapsed_ms, result_fingerprint,
			schema_version, engine
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.SessionID, rec.Attempt, rec.Timestamp.UTC(), rec.Question,
		rec.RawOutput, rec.SQL, rec.RewrittenSQL, rules, rewrites,
		rec.Status, rec.ErrorReason, rec.RowCount, rec.Truncated,
		rec.ElapsedMS, rec.ResultFingerprint, rec.SchemaVersion, rec.Engine)
	if err != nil {
		return fmt.Errorf("audit: insert attempt: %w", err)
	}
	return nil
}

func (l *PostgresLogger) LogSession(ctx context.Context, rec *SessionRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_sessions (
			session_id, question, status, attempts, final_sql, stop_reason,
			started_at, finished_at, duration_ms, schema_version, engine
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.SessionID, rec.Question, rec.Status, rec.Attempts,
		rec.FinalSQL, rec.StopReason, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		rec.DurationMS, rec.SchemaVersion, rec.Engine)
	if err != nil {
		return fmt.Errorf("audit: insert session: %w", err)
	}
	return nil
}

// Summarize aggregates the persisted session records.
func (l *PostgresLogger) Summarize(ctx context.Context) (*Summary, error) {
	return summarize(ctx, l.db)
}

func (l *PostgresLogger) Close() error {
	return l.db.Close()
}
