package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/askdb-labs/askdb/internal/errors"
)

// Outcome is the result of one execution attempt.
type Outcome struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`

	// RowCount is the number of rows returned after the cap.
	RowCount int `json:"row_count"`

	// Truncated reports that the engine had more rows than the cap.
	Truncated bool `json:"truncated"`

	// ElapsedMS is wall-clock execution time.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Options bound every execution.
type Options struct {
	// Timeout is the wall-clock budget per statement.
	Timeout time.Duration

	// RowCap truncates results larger than this many rows.
	RowCap int

	// AllowUnenforced permits engines that cannot pin connections
	// read-only. Off by default; the rewrite layer is then the only
	// line of defense and the caller has said that is acceptable.
	AllowUnenforced bool
}

// DefaultOptions mirror the standard policy knobs.
func DefaultOptions() Options {
	return Options{
		Timeout: 10 * time.Second,
		RowCap:  1000,
	}
}

// Executor runs statements on one engine. Safe for concurrent use.
type Executor struct {
	engine Engine
	opts   Options
}

// New wires an executor to an engine. Engines that cannot enforce
// read-only connections are refused unless Options.AllowUnenforced.
func New(engine Engine, opts Options) (*Executor, error) {
	if engine == nil {
		return nil, fmt.Errorf("executor: nil engine")
	}
	if !engine.ReadOnlyEnforced() && !opts.AllowUnenforced {
		return nil, fmt.Errorf(
			"executor: engine %s cannot enforce read-only connections; "+
				"set allow_unenforced_engines to accept that", engine.Name())
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.RowCap <= 0 {
		opts.RowCap = DefaultOptions().RowCap
	}
	return &Executor{engine: engine, opts: opts}, nil
}

// Engine returns the wired engine.
func (ex *Executor) Engine() Engine { return ex.engine }

// Execute runs one validated, rewritten statement. The statement gets
// its own deadline derived from ctx; results larger than the row cap
// are truncated, not failed. Failures come back as typed errors in the
// timeout or execution_error categories.
func (ex *Executor) Execute(ctx context.Context, query string) (out *Outcome, execErr *errors.Error) {
	ctx, cancel := context.WithTimeout(ctx, ex.opts.Timeout)
	defer cancel()

	// Some drivers panic on malformed inputs instead of returning an
	// error. A panic must not take the session down.
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			execErr = errors.NewExecutionError(fmt.Errorf("driver panic: %v", rec))
		}
	}()

	start := time.Now()
	rows, err := ex.engine.QueryContext(ctx, query)
	if err != nil {
		return nil, ex.classify(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, ex.classify(err)
	}

	result := make([][]any, 0, min(ex.opts.RowCap, 64))
	truncated := false
	for rows.Next() {
		if len(result) == ex.opts.RowCap {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, ex.classify(err)
		}
		result = append(result, values)
	}
	if !truncated {
		if err := rows.Err(); err != nil {
			return nil, ex.classify(err)
		}
	}

	return &Outcome{
		Columns:   columns,
		Rows:      result,
		RowCount:  len(result),
		Truncated: truncated,
		ElapsedMS: time.Since(start).Milliseconds(),
	}, nil
}

// classify maps a driver error onto the failure taxonomy. Deadline
// overruns surface as timeouts, everything else as execution errors.
func (ex *Executor) classify(err error) *errors.Error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeout(ex.opts.Timeout.Milliseconds())
	}
	return errors.NewExecutionError(err)
}
