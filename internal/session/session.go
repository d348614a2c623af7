// Package session drives the bounded retry loop around one question:
// generate, validate, rewrite, execute, and feed structured failure
// context back to the generator until success or a terminal stop.
package session

import (
	"time"

	"github.com/askdb-labs/askdb/internal/errors"
	"github.com/askdb-labs/askdb/internal/executor"
	"github.com/askdb-labs/askdb/internal/policy"
)

// Status is the terminal state of a session.
type Status string

const (
	// StatusSuccess means an attempt executed and returned a result.
	StatusSuccess Status = "success"

	// StatusPolicyRejected means the cap was reached and the last
	// failure was a validation failure.
	StatusPolicyRejected Status = "policy_rejected"

	// StatusOscillation means the generator repeated an earlier
	// candidate after failure feedback.
	StatusOscillation Status = "oscillation"

	// StatusRetryCapExceeded means the cap was reached and the last
	// failure happened at or after execution.
	StatusRetryCapExceeded Status = "retry_cap_exceeded"

	// StatusSchemaDrift means the schema changed between attempts.
	StatusSchemaDrift Status = "schema_drift"
)

// Terminal reports whether the status maps to a defined stop state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusPolicyRejected, StatusOscillation,
		StatusRetryCapExceeded, StatusSchemaDrift:
		return true
	}
	return false
}

// ExitCode maps a status to the process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPolicyRejected:
		return int(errors.CodeValidation)
	case StatusRetryCapExceeded:
		return int(errors.CodeExecution)
	case StatusOscillation, StatusSchemaDrift:
		return int(errors.CodeSession)
	default:
		return int(errors.CodeInternal)
	}
}

// Attempt records one pass through the loop.
type Attempt struct {
	Number int

	// RawOutput is the uncleaned generator output.
	RawOutput string

	// SQL is the cleaned candidate.
	SQL string

	// RewrittenSQL is what executed, empty when validation failed.
	RewrittenSQL string

	Rules    []policy.RuleResult
	Rewrites []string

	// Outcome is set on success.
	Outcome *executor.Outcome

	// Err is set on failure, carrying the category fed back.
	Err *errors.Error

	StartedAt time.Time
	ElapsedMS int64
}

// Session is the full record of one question's run.
type Session struct {
	ID       string
	Question string
	Status   Status

	// StopReason is human-readable context for non-success statuses.
	StopReason string

	Attempts []Attempt

	// FinalSQL is the executed statement on success.
	FinalSQL string

	// Result is the successful outcome, nil otherwise.
	Result *executor.Outcome

	// ResultFingerprint digests the result on success.
	ResultFingerprint string

	SchemaVersion string
	Engine        string

	StartedAt  time.Time
	FinishedAt time.Time
}

// LastError returns the error of the last failed attempt, or nil.
func (s *Session) LastError() *errors.Error {
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].Err != nil {
			return s.Attempts[i].Err
		}
	}
	return nil
}
