package evaluator

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/askdb-labs/askdb/internal/executor"
	"github.com/askdb-labs/askdb/internal/session"
)

// cannedRunner replays a cycle of sessions.
type cannedRunner struct {
	sessions []*session.Session
	calls    atomic.Int64
}

func (r *cannedRunner) Run(ctx context.Context, question string) (*session.Session, error) {
	n := r.calls.Add(1) - 1
	s := *r.sessions[int(n)%len(r.sessions)]
	s.Question = question
	return &s, nil
}

func okSession(sql, fp string, rows int) *session.Session {
	return &session.Session{
		Status:            session.StatusSuccess,
		FinalSQL:          sql,
		ResultFingerprint: fp,
		Attempts:          []session.Attempt{{Number: 1, SQL: sql}},
		Result: &executor.Outcome{
			Columns:  []string{"state", "n"},
			RowCount: rows,
		},
	}
}

func failedSession(status session.Status, sql string) *session.Session {
	return &session.Session{
		Status:   status,
		Attempts: []session.Attempt{{Number: 1, SQL: sql}},
	}
}

func TestEvaluatePerfectConsistency(t *testing.T) {
	sql := "SELECT state, COUNT(*) AS n FROM fuel_stations GROUP BY state LIMIT 200"
	runner := &cannedRunner{sessions: []*session.Session{okSession(sql, "fp-1", 3)}}

	rep, err := New(runner, Options{Repeats: 5, Parallelism: 2, Deterministic: true}).
		Evaluate(context.Background(), []Case{{
			ID:       "by-state",
			Question: "How many stations are there by state?",
			Expect: Expectation{
				SQLContains: []string{"GROUP BY", "COUNT"},
				ResultProps: &ResultProps{ColumnsContains: []string{"state"}},
			},
		}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if runner.calls.Load() != 5 {
		t.Fatalf("runs = %d, want 5", runner.calls.Load())
	}
	m := rep.Cases[0].Metrics
	if m.ExecSuccessRate != 1 || m.Correctness != 1 || m.SQLConsistency != 1 || m.ResultConsistency != 1 {
		t.Fatalf("metrics = %+v, want all 1.0", m)
	}
	if !rep.Deterministic {
		t.Fatal("deterministic flag lost")
	}
}

func TestEvaluateMixedOutcomes(t *testing.T) {
	good := okSession("SELECT state FROM fuel_stations LIMIT 200", "fp-a", 3)
	bad := failedSession(session.StatusRetryCapExceeded, "SELECT nope FROM fuel_stations")
	runner := &cannedRunner{sessions: []*session.Session{good, bad}}

	rep, err := New(runner, Options{Repeats: 4, Parallelism: 1}).
		Evaluate(context.Background(), []Case{{
			ID:       "mixed",
			Question: "list states",
			Expect:   Expectation{SQLContains: []string{"fuel_stations"}},
		}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	m := rep.Cases[0].Metrics
	if m.ExecSuccessRate != 0.5 {
		t.Fatalf("exec success rate = %v, want 0.5", m.ExecSuccessRate)
	}
	// Two successes, both correct.
	if m.Correctness != 1 {
		t.Fatalf("correctness = %v, want 1", m.Correctness)
	}
	// First-attempt SQL alternates between two forms.
	if m.SQLConsistency != 0.5 {
		t.Fatalf("sql consistency = %v, want 0.5", m.SQLConsistency)
	}
	// Both successful runs share a fingerprint.
	if m.ResultConsistency != 1 {
		t.Fatalf("result consistency = %v, want 1", m.ResultConsistency)
	}
	if len(rep.Cases[0].Failures) != 1 || rep.Cases[0].Failures[0] != "retry_cap_exceeded" {
		t.Fatalf("failures = %v", rep.Cases[0].Failures)
	}
}

func TestEvaluateAllowFail(t *testing.T) {
	bad := failedSession(session.StatusPolicyRejected, "DELETE FROM t")
	runner := &cannedRunner{sessions: []*session.Session{bad}}

	rep, err := New(runner, Options{Repeats: 3, Parallelism: 1}).
		Evaluate(context.Background(), []Case{{
			ID:       "refusal",
			Question: "delete everything",
			Expect:   Expectation{AllowFail: true},
		}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	m := rep.Cases[0].Metrics
	if m.ExecSuccessRate != 0 {
		t.Fatalf("exec success rate = %v, want 0", m.ExecSuccessRate)
	}
	if m.Correctness != 1 {
		t.Fatalf("correctness = %v; expected failures count as correct", m.Correctness)
	}
}

func TestEvaluateOracleChecks(t *testing.T) {
	s := okSession("SELECT state, COUNT(*) AS n FROM fuel_stations GROUP BY state LIMIT 200", "fp", 3)
	runner := &cannedRunner{sessions: []*session.Session{s}}

	three := 3
	rep, err := New(runner, Options{Repeats: 1, Parallelism: 1}).
		Evaluate(context.Background(), []Case{
			{ID: "pass", Question: "q", Expect: Expectation{
				SQLContains:    []string{"group by"},
				SQLNotContains: []string{"JOIN"},
				SQLRegex:       `(?i)count\(\*\)`,
				ResultProps:    &ResultProps{RowCountEquals: &three, ColumnsContains: []string{"n"}},
			}},
			{ID: "fail-fragment", Question: "q", Expect: Expectation{
				SQLContains: []string{"HAVING"},
			}},
		})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rep.Cases[0].Metrics.Correctness != 1 {
		t.Fatalf("passing oracle scored %v", rep.Cases[0].Metrics.Correctness)
	}
	if rep.Cases[1].Metrics.Correctness != 0 {
		t.Fatalf("failing oracle scored %v", rep.Cases[1].Metrics.Correctness)
	}
	if rep.Aggregate.Correctness != 0.5 {
		t.Fatalf("aggregate correctness = %v, want 0.5", rep.Aggregate.Correctness)
	}
}

func TestEvaluateExactRowOracle(t *testing.T) {
	s := okSession("SELECT state, COUNT(*) AS n FROM fuel_stations GROUP BY state LIMIT 200", "fp", 1)
	s.Result.Rows = [][]any{{"CA", int64(42)}}
	runner := &cannedRunner{sessions: []*session.Session{s}}

	rep, err := New(runner, Options{Repeats: 1, Parallelism: 1}).
		Evaluate(context.Background(), []Case{
			{ID: "exact", Question: "q", Expect: Expectation{
				Rows: [][]any{{"CA", 42}},
			}},
			{ID: "tolerant", Question: "q", Expect: Expectation{
				Rows:             [][]any{{"CA", 41.5}},
				NumericTolerance: 0.6,
			}},
			{ID: "off-by-one", Question: "q", Expect: Expectation{
				Rows: [][]any{{"CA", 43}},
			}},
		})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rep.Cases[0].Metrics.Correctness != 1 {
		t.Fatalf("exact match scored %v", rep.Cases[0].Metrics.Correctness)
	}
	if rep.Cases[1].Metrics.Correctness != 1 {
		t.Fatalf("tolerant match scored %v", rep.Cases[1].Metrics.Correctness)
	}
	if rep.Cases[2].Metrics.Correctness != 0 {
		t.Fatalf("mismatched rows scored %v", rep.Cases[2].Metrics.Correctness)
	}
}

func TestLoadCasesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	content := `
- id: by-state
  question: How many stations are there by state?
  expect:
    sql_contains: ["GROUP BY"]
    result_props:
      min_rows: 1
- question: anonymous case
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cases, err := LoadCases(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d", len(cases))
	}
	if cases[0].Expect.ResultProps == nil || *cases[0].Expect.ResultProps.MinRows != 1 {
		t.Fatalf("result props = %+v", cases[0].Expect.ResultProps)
	}
	if cases[1].ID != "case-2" {
		t.Fatalf("missing id not defaulted: %q", cases[1].ID)
	}
}

func TestLoadCasesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	content := `{"id":"a","question":"q1","expect":{"sql_contains":["SELECT"]}}
{"id":"b","question":"q2","expect":{"allow_fail":true}}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cases, err := LoadCases(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 || !cases[1].Expect.AllowFail {
		t.Fatalf("cases = %+v", cases)
	}
}
