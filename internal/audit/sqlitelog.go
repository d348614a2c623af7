package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_attempts (
	session_id         TEXT NOT NULL,
	attempt            INTEGER NOT NULL,
	timestamp          TEXT NOT NULL,
	question           TEXT NOT NULL,
	raw_output         TEXT,
	sql_text           TEXT,
	rewritten_sql      TEXT,
	rules_json         TEXT,
	rewrites_json      TEXT,
	status             TEXT NOT NULL,
	error_reason       TEXT,
	row_count          INTEGER NOT NULL DEFAULT 0,
	truncated          INTEGER NOT NULL DEFAULT 0,
	elapsed_ms         INTEGER NOT NULL DEFAULT 0,
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
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL,
	duration_ms    INTEGER NOT NULL,
	schema_version TEXT,
	engine         TEXT
);`

// SQLiteLogger persists audit records to a local SQLite database. The
// write pool is separate from any query engine; auditing a read-only
// engine must not require the target database to be writable.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens (and if needed initializes) the audit database.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init sqlite schema: %w", err)
	}
	return &SQLiteLogger{db: db}, nil
}

func (l *SQLiteLogger) LogAttempt(ctx context.Context, rec *AttemptRecord) error {
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Attempt, rec.Timestamp.UTC().Format(timeLayout),
		rec.Question, rec.RawOutput, rec.SQL, rec.RewrittenSQL,
		rules, rewrites, rec.Status, rec.ErrorReason,
		rec.RowCount, boolInt(rec.Truncated), rec.ElapsedMS,
		rec.ResultFingerprint, rec.SchemaVersion, rec.Engine)
	if err != nil {
		return fmt.Errorf("audit: insert attempt: %w", err)
	}
	return nil
}

func (l *SQLiteLogger) LogSession(ctx context.Context, rec *SessionRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_sessions (
			session_id, question, status, attempts, final_sql, stop_reason,
			started_at, finished_at, duration_ms, schema_version, engine
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Question, rec.Status, rec.Attempts,
		rec.FinalSQL, rec.StopReason,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
		rec.DurationMS, rec.SchemaVersion, rec.Engine)
	if err != nil {
		return fmt.Errorf("audit: insert session: %w", err)
	}
	return nil
}

// Summarize aggregates the persisted session records.
func (l *SQLiteLogger) Summarize(ctx context.Context) (*Summary, error) {
	return summarize(ctx, l.db)
}

func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func marshalDetails(rec *AttemptRecord) (rules, rewrites string, err error) {
	r, err := json.Marshal(rec.Rules)
	if err != nil {
		return "", "", fmt.Errorf("audit: marshal rules: %w", err)
	}
	w, err := json.Marshal(rec.Rewrites)
	if err != nil {
		return "", "", fmt.Errorf("audit: marshal rewrites: %w", err)
	}
	return string(r), string(w), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// summarize is shared by the SQLite and Postgres sinks; both use the
// same table shape.
func summarize(ctx context.Context, db *sql.DB) (*Summary, error) {
	s := &Summary{ByStatus: make(map[string]int)}

	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM audit_sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("audit: summarize sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("audit: summarize sessions: %w", err)
		}
		s.ByStatus[status] = n
		s.Sessions += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: summarize sessions: %w", err)
	}

	var avg sql.NullFloat64
	if err := db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms) FROM audit_sessions`).Scan(&avg); err != nil {
		return nil, fmt.Errorf("audit: summarize duration: %w", err)
	}
	if avg.Valid {
		s.AvgTimeMS = int64(avg.Float64)
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_attempts`).Scan(&s.Attempts); err != nil {
		return nil, fmt.Errorf("audit: summarize attempts: %w", err)
	}
	return s, nil
}
