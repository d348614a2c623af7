package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askdb-labs/askdb/internal/audit"
	"github.com/askdb-labs/askdb/internal/errors"
	"github.com/askdb-labs/askdb/internal/executor"
	"github.com/askdb-labs/askdb/internal/fingerprint"
	"github.com/askdb-labs/askdb/internal/generator"
	"github.com/askdb-labs/askdb/internal/schema"
	"github.com/askdb-labs/askdb/internal/sqlguard"
)

// Config bounds the retry loop.
type Config struct {
	// RetryCap is the maximum number of generation attempts.
	RetryCap int

	// GeneratorTimeout bounds each generation call.
	GeneratorTimeout time.Duration

	// SchemaBlobMaxBytes truncates the schema text in prompts.
	SchemaBlobMaxBytes int
}

// DefaultConfig matches the standard knobs.
func DefaultConfig() Config {
	return Config{
		RetryCap:         3,
		GeneratorTimeout: 30 * time.Second,
	}
}

// Executor is the slice of the execution layer the orchestrator needs.
type Executor interface {
	Execute(ctx context.Context, query string) (*executor.Outcome, *errors.Error)
	Engine() executor.Engine
}

// Orchestrator runs sessions. All collaborators are injected; the
// orchestrator owns only the state machine.
type Orchestrator struct {
	gen       generator.Generator
	validator *sqlguard.Validator
	rewriter  *sqlguard.Rewriter
	exec      Executor
	schemas   *schema.Service
	auditor   audit.Logger
	cfg       Config
}

// New wires an orchestrator. A nil auditor disables auditing.
func New(
	gen generator.Generator,
	validator *sqlguard.Validator,
	rewriter *sqlguard.Rewriter,
	exec Executor,
	schemas *schema.Service,
	auditor audit.Logger,
	cfg Config,
) *Orchestrator {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = DefaultConfig().RetryCap
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = DefaultConfig().GeneratorTimeout
	}
	return &Orchestrator{
		gen:       gen,
		validator: validator,
		rewriter:  rewriter,
		exec:      exec,
		schemas:   schemas,
		auditor:   auditor,
		cfg:       cfg,
	}
}

// feedback is the structured failure context fed to the next attempt.
type feedback struct {
	Category   string `json:"category"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
	FailedSQL  string `json:"failed_sql,omitempty"`
}

func renderFeedback(e *errors.Error, failedSQL string) string {
	raw, err := json.Marshal(feedback{
		Category:   string(e.Category),
		Reason:     e.Reason,
		Suggestion: e.Suggestion,
		FailedSQL:  failedSQL,
	})
	if err != nil {
		return fmt.Sprintf(`{"category":%q}`, e.Category)
	}
	return string(raw)
}

// Run drives one question to a terminal status. The returned session
// is complete even on error; a non-nil error means infrastructure
// failed (schema load, audit write), not that the question failed.
func (o *Orchestrator) Run(ctx context.Context, question string) (*Session, error) {
	snap, err := o.schemas.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: load schema: %w", err)
	}

	s := &Session{
		ID:            uuid.NewString(),
		Question:      question,
		SchemaVersion: snap.Version,
		Engine:        o.exec.Engine().Name(),
		StartedAt:     time.Now(),
	}
	blob := snap.PromptBlob(o.cfg.SchemaBlobMaxBytes)

	seen := make(map[string]int)
	pendingFeedback := ""

	for attemptNo := 1; attemptNo <= o.cfg.RetryCap; attemptNo++ {
		if attemptNo > 1 {
			drifted, fresh, err := o.schemas.Drifted(ctx, s.SchemaVersion)
			if err != nil {
				return s, fmt.Errorf("session: drift check: %w", err)
			}
			if drifted {
				driftErr := errors.NewSchemaDrift(s.SchemaVersion, fresh.Version)
				o.recordAttempt(ctx, s, &Attempt{
					Number:    attemptNo,
					Err:       driftErr,
					StartedAt: time.Now(),
				})
				return o.finish(ctx, s, StatusSchemaDrift, driftErr.Reason)
			}
		}

		att := &Attempt{Number: attemptNo, StartedAt: time.Now()}

		cand, genErr := o.generate(ctx, generator.Request{
			Question:      question,
			SchemaBlob:    blob,
			SchemaVersion: s.SchemaVersion,
			Feedback:      pendingFeedback,
			Attempt:       attemptNo,
		})
		if genErr != nil {
			att.Err = genErr
			o.recordAttempt(ctx, s, att)
			if !o.retry(attemptNo, genErr) {
				return o.finish(ctx, s, StatusRetryCapExceeded, o.stopReason(attemptNo, genErr))
			}
			pendingFeedback = renderFeedback(genErr, "")
			continue
		}
		att.RawOutput = cand.Raw
		att.SQL = cand.SQL

		norm := sqlguard.Normalize(cand.SQL)
		if prev, dup := seen[norm]; dup {
			oscErr := errors.NewOscillation(attemptNo, prev)
			att.Err = oscErr
			o.recordAttempt(ctx, s, att)
			return o.finish(ctx, s, StatusOscillation, oscErr.Reason)
		}
		seen[norm] = attemptNo

		v := o.validator.Validate(cand.SQL)
		att.Rules = v.Decision.Rules
		if !v.OK() {
			valErr := v.Err()
			att.Err = valErr
			o.recordAttempt(ctx, s, att)
			if !o.retry(attemptNo, valErr) {
				return o.finish(ctx, s, StatusPolicyRejected, valErr.Reason)
			}
			pendingFeedback = renderFeedback(valErr, cand.SQL)
			continue
		}

		rw, rwErr := o.rewriter.Apply(v)
		if rwErr != nil {
			att.Err = rwErr
			o.recordAttempt(ctx, s, att)
			if !o.retry(attemptNo, rwErr) {
				return o.finish(ctx, s, StatusPolicyRejected, rwErr.Reason)
			}
			pendingFeedback = renderFeedback(rwErr, cand.SQL)
			continue
		}
		att.RewrittenSQL = rw.SQL
		att.Rewrites = rw.Applied

		out, execErr := o.exec.Execute(ctx, rw.SQL)
		if execErr != nil {
			att.Err = execErr
			o.recordAttempt(ctx, s, att)
			if !o.retry(attemptNo, execErr) {
				return o.finish(ctx, s, StatusRetryCapExceeded, o.stopReason(attemptNo, execErr))
			}
			pendingFeedback = renderFeedback(execErr, rw.SQL)
			continue
		}

		att.Outcome = out
		att.ElapsedMS = out.ElapsedMS
		o.recordAttempt(ctx, s, att)

		s.FinalSQL = rw.SQL
		s.Result = out
		s.ResultFingerprint = fingerprint.Result(out.Columns, out.Rows)
		return o.finish(ctx, s, StatusSuccess, "")
	}

	// Unreachable: every loop exit path above is terminal.
	return o.finish(ctx, s, StatusRetryCapExceeded, errors.NewRetryCapExceeded(o.cfg.RetryCap).Reason)
}

// retry reports whether the loop may continue after a failure: the
// category must allow feedback and the cap must not be reached.
func (o *Orchestrator) retry(attemptNo int, e *errors.Error) bool {
	return e.Category.Retryable() && attemptNo < o.cfg.RetryCap
}

// stopReason names why a failed loop stopped: the cap when it was
// reached, otherwise the non-retryable failure that broke it.
func (o *Orchestrator) stopReason(attemptNo int, e *errors.Error) string {
	if attemptNo >= o.cfg.RetryCap {
		return errors.NewRetryCapExceeded(o.cfg.RetryCap).Reason
	}
	return e.Reason
}

func (o *Orchestrator) generate(ctx context.Context, req generator.Request) (generator.Candidate, *errors.Error) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GeneratorTimeout)
	defer cancel()
	cand, err := o.gen.Generate(genCtx, req)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return generator.Candidate{}, e
		}
		return generator.Candidate{}, errors.NewGenerationFailed(err)
	}
	return cand, nil
}

func (o *Orchestrator) recordAttempt(ctx context.Context, s *Session, att *Attempt) {
	s.Attempts = append(s.Attempts, *att)

	rec := &audit.AttemptRecord{
		SessionID:     s.ID,
		Attempt:       att.Number,
		Timestamp:     att.StartedAt,
		Question:      s.Question,
		RawOutput:     att.RawOutput,
		SQL:           att.SQL,
		RewrittenSQL:  att.RewrittenSQL,
		Rules:         att.Rules,
		Rewrites:      att.Rewrites,
		Status:        "ok",
		SchemaVersion: s.SchemaVersion,
		Engine:        s.Engine,
	}
	if att.Err != nil {
		rec.Status = string(att.Err.Category)
		rec.ErrorReason = att.Err.Reason
	}
	if att.Outcome != nil {
		rec.RowCount = att.Outcome.RowCount
		rec.Truncated = att.Outcome.Truncated
		rec.ElapsedMS = att.Outcome.ElapsedMS
		rec.ResultFingerprint = fingerprint.Result(att.Outcome.Columns, att.Outcome.Rows)
	}
	// Audit failures surface in finish; a lost attempt record must not
	// abort a running question mid-flight.
	_ = o.auditor.LogAttempt(ctx, rec)
}

func (o *Orchestrator) finish(ctx context.Context, s *Session, status Status, reason string) (*Session, error) {
	s.Status = status
	s.StopReason = reason
	s.FinishedAt = time.Now()

	err := o.auditor.LogSession(ctx, &audit.SessionRecord{
		SessionID:     s.ID,
		Question:      s.Question,
		Status:        string(status),
		Attempts:      len(s.Attempts),
		FinalSQL:      s.FinalSQL,
		StopReason:    reason,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
		DurationMS:    s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
		SchemaVersion: s.SchemaVersion,
		Engine:        s.Engine,
	})
	if err != nil {
		return s, fmt.Errorf("session: audit: %w", err)
	}
	return s, nil
}
