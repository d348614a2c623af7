// Package errors provides explicit, human-readable error types for askdb.
// Every failure crossing the trust boundary carries a Category from the
// fixed taxonomy, a Reason, and a Suggestion for actionable feedback.
package errors

import (
	"fmt"
)

// Category classifies a failure for retry decisions and audit records.
type Category string

const (
	// CategoryUnparseable means the candidate is not valid single-statement SQL.
	CategoryUnparseable Category = "unparseable"

	// CategoryPolicyViolation means a disallowed statement kind, blocked
	// keyword, or multi-statement text was detected.
	CategoryPolicyViolation Category = "policy_violation"

	// CategoryExecutionError is a database-level failure (unknown column,
	// unknown table, type mismatch).
	CategoryExecutionError Category = "execution_error"

	// CategoryTimeout means execution exceeded the wall-clock budget.
	CategoryTimeout Category = "timeout"

	// CategoryGenerationFailed is a transport-level failure of the external
	// generator (timeout, unreachable endpoint).
	CategoryGenerationFailed Category = "generation_failed"

	// CategoryOscillation means two attempts normalized to identical SQL
	// after a failure. Terminal.
	CategoryOscillation Category = "oscillation"

	// CategoryRetryCapExceeded means the retry cap was reached without
	// success. Terminal.
	CategoryRetryCapExceeded Category = "retry_cap_exceeded"

	// CategorySchemaDrift means the schema version changed mid-session.
	// Terminal; the caller must restart with a fresh schema.
	CategorySchemaDrift Category = "schema_drift"
)

// Retryable reports whether a failure of this category may be fed back to
// the generator for another attempt.
func (c Category) Retryable() bool {
	switch c {
	case CategoryUnparseable, CategoryPolicyViolation, CategoryExecutionError,
		CategoryTimeout, CategoryGenerationFailed:
		return true
	}
	return false
}

// Code maps error classes to process exit codes.
type Code int

const (
	CodeValidation Code = 1
	CodeExecution  Code = 2
	CodeSession    Code = 3
	CodeInternal   Code = 4
)

// Error is the base error type for all askdb errors.
type Error struct {
	Code       Code
	Category   Category
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewUnparseable creates an error for candidate text that failed to parse
// as exactly one statement of the target dialect.
func NewUnparseable(reason string) *Error {
	return &Error{
		Code:       CodeValidation,
		Category:   CategoryUnparseable,
		Message:    "candidate SQL is not parseable",
		Reason:     reason,
		Suggestion: "fix syntax: output exactly one SELECT statement",
	}
}

// NewPolicyViolation creates an error naming the violated rules.
func NewPolicyViolation(reasons ...string) *Error {
	return &Error{
		Code:       CodeValidation,
		Category:   CategoryPolicyViolation,
		Message:    "candidate SQL rejected by policy",
		Reason:     joinReasons(reasons),
		Suggestion: "generate a single read-only SELECT statement without blocked keywords",
	}
}

// NewExecutionError wraps a driver-level failure.
func NewExecutionError(cause error) *Error {
	return &Error{
		Code:       CodeExecution,
		Category:   CategoryExecutionError,
		Message:    "query execution failed",
		Reason:     fmt.Sprintf("%v", cause),
		Suggestion: "use only tables and columns present in the schema",
		Cause:      cause,
	}
}

// NewTimeout creates an error for an execution that exceeded its budget.
func NewTimeout(budgetMS int64) *Error {
	return &Error{
		Code:       CodeExecution,
		Category:   CategoryTimeout,
		Message:    "query execution timed out",
		Reason:     fmt.Sprintf("exceeded the %dms time budget", budgetMS),
		Suggestion: "simplify the query",
	}
}

// NewGenerationFailed wraps a generator transport failure.
func NewGenerationFailed(cause error) *Error {
	return &Error{
		Code:       CodeSession,
		Category:   CategoryGenerationFailed,
		Message:    "SQL generation failed",
		Reason:     fmt.Sprintf("%v", cause),
		Suggestion: "check generator endpoint availability and timeout",
		Cause:      cause,
	}
}

// NewOscillation creates a terminal error for a repeated candidate.
func NewOscillation(attempt, repeatOf int) *Error {
	return &Error{
		Code:       CodeSession,
		Category:   CategoryOscillation,
		Message:    "generator repeated an earlier candidate",
		Reason:     fmt.Sprintf("attempt %d normalized to the same SQL as attempt %d", attempt, repeatOf),
		Suggestion: "feedback had no effect; the question may need rephrasing",
	}
}

// NewRetryCapExceeded creates a terminal error for an exhausted session.
func NewRetryCapExceeded(cap int) *Error {
	return &Error{
		Code:       CodeSession,
		Category:   CategoryRetryCapExceeded,
		Message:    "retry cap exceeded",
		Reason:     fmt.Sprintf("no successful attempt after %d generations", cap),
		Suggestion: "rephrase the question or raise the retry cap",
	}
}

// NewSchemaDrift creates a terminal error for a mid-session schema change.
func NewSchemaDrift(oldVersion, newVersion string) *Error {
	return &Error{
		Code:       CodeSession,
		Category:   CategorySchemaDrift,
		Message:    "schema changed mid-session",
		Reason:     fmt.Sprintf("schema version %s became %s between attempts", short(oldVersion), short(newVersion)),
		Suggestion: "restart the question against the fresh schema",
	}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
