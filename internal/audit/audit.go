// Package audit records what the trust boundary did and why. One
// record per attempt, one summary per session, append-only, each record
// self-contained enough to reconstruct the decision after the fact.
package audit

import (
	"context"
	"time"

	"github.com/askdb-labs/askdb/internal/policy"
)

// AttemptRecord captures one generate-validate-execute attempt.
type AttemptRecord struct {
	SessionID string    `json:"session_id"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`

	// RawOutput is the generator output before cleaning.
	RawOutput string `json:"raw_output,omitempty"`

	// SQL is the cleaned candidate that entered validation.
	SQL string `json:"sql,omitempty"`

	// RewrittenSQL is what actually executed, when execution happened.
	RewrittenSQL string `json:"rewritten_sql,omitempty"`

	// Rules is the complete per-rule validation record.
	Rules []policy.RuleResult `json:"rules,omitempty"`

	// Rewrites lists the defensive rewrites that fired.
	Rewrites []string `json:"rewrites,omitempty"`

	// Status is "ok" or the failure category.
	Status string `json:"status"`

	ErrorReason string `json:"error_reason,omitempty"`

	RowCount  int   `json:"row_count"`
	Truncated bool  `json:"truncated,omitempty"`
	ElapsedMS int64 `json:"elapsed_ms"`

	// ResultFingerprint digests the result set on success.
	ResultFingerprint string `json:"result_fingerprint,omitempty"`

	SchemaVersion string `json:"schema_version,omitempty"`
	Engine        string `json:"engine,omitempty"`
}

// SessionRecord summarizes a finished session.
type SessionRecord struct {
	SessionID  string    `json:"session_id"`
	Question   string    `json:"question"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	FinalSQL   string    `json:"final_sql,omitempty"`
	StopReason string    `json:"stop_reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`

	SchemaVersion string `json:"schema_version,omitempty"`
	Engine        string `json:"engine,omitempty"`
}

// Logger is an append-only audit sink. Implementations must be safe
// for concurrent writers; evaluator runs log in parallel.
type Logger interface {
	LogAttempt(ctx context.Context, rec *AttemptRecord) error
	LogSession(ctx context.Context, rec *SessionRecord) error
	Close() error
}

// Summary aggregates a sink's session records.
type Summary struct {
	Sessions  int            `json:"sessions"`
	ByStatus  map[string]int `json:"by_status"`
	Attempts  int            `json:"attempts"`
	AvgTimeMS int64          `json:"avg_time_ms"`
}

// Summarizer is implemented by sinks that can be queried back.
type Summarizer interface {
	Summarize(ctx context.Context) (*Summary, error)
}

// Nop discards everything. Used when auditing is disabled.
type Nop struct{}

func (Nop) LogAttempt(context.Context, *AttemptRecord) error { return nil }
func (Nop) LogSession(context.Context, *SessionRecord) error { return nil }
func (Nop) Close() error                                     { return nil }
