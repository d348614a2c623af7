// Package evaluator measures how consistently the pipeline answers the
// same question. Each case runs R times; the scores say how often runs
// execute, agree on SQL, agree on results, and satisfy the oracle.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/askdb-labs/askdb/internal/fingerprint"
	"github.com/askdb-labs/askdb/internal/session"
	"github.com/askdb-labs/askdb/internal/sqlguard"
)

// Runner produces one full session per call. The orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, question string) (*session.Session, error)
}

// Options bound an evaluation.
type Options struct {
	// Repeats is R, the runs per question.
	Repeats int

	// Parallelism caps concurrent runs across all questions.
	Parallelism int

	// Deterministic notes whether the generator claims determinism;
	// it is carried into the report next to the consistency scores.
	Deterministic bool
}

// DefaultOptions run each question five times, four at a time.
func DefaultOptions() Options {
	return Options{Repeats: 5, Parallelism: 4}
}

// Metrics are the four per-question scores, each in [0, 1].
type Metrics struct {
	ExecSuccessRate   float64 `json:"exec_success_rate"`
	Correctness       float64 `json:"correctness"`
	SQLConsistency    float64 `json:"sql_consistency"`
	ResultConsistency float64 `json:"result_consistency"`
}

// CaseResult is one question's scores plus its failure notes.
type CaseResult struct {
	CaseID   string  `json:"case_id"`
	Question string  `json:"question"`
	Runs     int     `json:"runs"`
	Metrics  Metrics `json:"metrics"`

	// Failures lists distinct stop reasons seen across runs.
	Failures []string `json:"failures,omitempty"`
}

// Report is the full evaluation output.
type Report struct {
	Cases []CaseResult `json:"cases"`

	// Aggregate is the unweighted mean of every case's metrics.
	Aggregate Metrics `json:"aggregate"`

	Repeats       int  `json:"repeats"`
	Deterministic bool `json:"deterministic"`
}

// Evaluator fans runs out over a bounded worker group.
type Evaluator struct {
	runner Runner
	opts   Options
}

// New creates an evaluator.
func New(runner Runner, opts Options) *Evaluator {
	if opts.Repeats <= 0 {
		opts.Repeats = DefaultOptions().Repeats
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultOptions().Parallelism
	}
	return &Evaluator{runner: runner, opts: opts}
}

// run is what scoring needs from one session.
type run struct {
	ok          bool
	firstSQL    string
	finalSQL    string
	fingerprint string
	columns     []string
	rows        [][]any
	rowCount    int
	stopReason  string
}

// Evaluate runs every case R times and scores the outcomes. Runs
// within and across cases share the worker budget; the first
// infrastructure error cancels the whole evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, cases []Case) (*Report, error) {
	results := make([][]run, len(cases))
	for i := range results {
		results[i] = make([]run, e.opts.Repeats)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	var mu sync.Mutex

	for ci := range cases {
		for ri := 0; ri < e.opts.Repeats; ri++ {
			ci, ri := ci, ri
			g.Go(func() error {
				s, err := e.runner.Run(gctx, cases[ci].Question)
				if err != nil {
					return fmt.Errorf("case %s run %d: %w", cases[ci].ID, ri+1, err)
				}
				r := summarizeRun(s)
				mu.Lock()
				results[ci][ri] = r
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Repeats:       e.opts.Repeats,
		Deterministic: e.opts.Deterministic,
	}
	for ci, c := range cases {
		cr, err := score(c, results[ci])
		if err != nil {
			return nil, err
		}
		report.Cases = append(report.Cases, cr)
	}
	report.Aggregate = aggregate(report.Cases)
	return report, nil
}

func summarizeRun(s *session.Session) run {
	r := run{
		ok:         s.Status == session.StatusSuccess,
		finalSQL:   s.FinalSQL,
		stopReason: string(s.Status),
	}
	if len(s.Attempts) > 0 {
		r.firstSQL = fingerprint.SQL(sqlguard.Normalize(s.Attempts[0].SQL))
	}
	if r.ok && s.Result != nil {
		r.fingerprint = s.ResultFingerprint
		r.columns = s.Result.Columns
		r.rows = s.Result.Rows
		r.rowCount = s.Result.RowCount
	}
	return r
}

func score(c Case, runs []run) (CaseResult, error) {
	cr := CaseResult{CaseID: c.ID, Question: c.Question, Runs: len(runs)}

	var re *regexp.Regexp
	if c.Expect.SQLRegex != "" {
		var err error
		re, err = regexp.Compile(c.Expect.SQLRegex)
		if err != nil {
			return cr, fmt.Errorf("case %s: bad sql_regex: %w", c.ID, err)
		}
	}

	successes := 0
	correct := 0
	correctDenom := 0
	firstSQL := map[string]int{}
	fingerprints := map[string]int{}
	failures := map[string]bool{}

	for _, r := range runs {
		if r.firstSQL != "" {
			firstSQL[r.firstSQL]++
		}
		if !r.ok {
			failures[r.stopReason] = true
			if c.Expect.AllowFail {
				correct++
				correctDenom++
			}
			continue
		}
		successes++
		fingerprints[r.fingerprint]++
		correctDenom++
		if oraclePass(c.Expect, re, r) {
			correct++
		}
	}

	cr.Metrics.ExecSuccessRate = ratio(successes, len(runs))
	cr.Metrics.Correctness = ratio(correct, correctDenom)
	cr.Metrics.SQLConsistency = modalShare(firstSQL, len(runs))
	// Result consistency is over successful runs only; failed runs
	// carry no fingerprint to agree or disagree on, and counting them
	// would double-penalize what ExecSuccessRate already measures.
	cr.Metrics.ResultConsistency = modalShare(fingerprints, successes)
	for reason := range failures {
		cr.Failures = append(cr.Failures, reason)
	}
	return cr, nil
}

func oraclePass(exp Expectation, re *regexp.Regexp, r run) bool {
	norm := sqlguard.Normalize(r.finalSQL)
	for _, frag := range exp.SQLContains {
		if !strings.Contains(norm, strings.ToUpper(frag)) {
			return false
		}
	}
	for _, frag := range exp.SQLNotContains {
		if strings.Contains(norm, strings.ToUpper(frag)) {
			return false
		}
	}
	if re != nil && !re.MatchString(r.finalSQL) {
		return false
	}
	if props := exp.ResultProps; props != nil {
		cols := map[string]bool{}
		for _, c := range r.columns {
			cols[strings.ToLower(c)] = true
		}
		for _, want := range props.ColumnsContains {
			if !cols[strings.ToLower(want)] {
				return false
			}
		}
		if props.RowCountEquals != nil && r.rowCount != *props.RowCountEquals {
			return false
		}
		if props.MinRows != nil && r.rowCount < *props.MinRows {
			return false
		}
		if props.MaxRows != nil && r.rowCount > *props.MaxRows {
			return false
		}
	}
	if exp.Rows != nil && !rowsMatch(exp.Rows, r.rows, exp.NumericTolerance) {
		return false
	}
	return true
}

func rowsMatch(want, got [][]any, tolerance float64) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if len(want[i]) != len(got[i]) {
			return false
		}
		for j := range want[i] {
			if !cellsMatch(want[i][j], got[i][j], tolerance) {
				return false
			}
		}
	}
	return true
}

// cellsMatch compares numerically when both cells are numbers, so an
// int64 from one driver matches a float64 from a YAML oracle.
func cellsMatch(want, got any, tolerance float64) bool {
	wf, wok := asFloat(want)
	gf, gok := asFloat(got)
	if wok && gok {
		return math.Abs(wf-gf) <= tolerance
	}
	return fmt.Sprint(want) == fmt.Sprint(got)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// modalShare is the share of the most common value. No observations
// scores zero; agreement is never inferred from absence.
func modalShare(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	return ratio(max, total)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func aggregate(cases []CaseResult) Metrics {
	if len(cases) == 0 {
		return Metrics{}
	}
	var agg Metrics
	for _, c := range cases {
		agg.ExecSuccessRate += c.Metrics.ExecSuccessRate
		agg.Correctness += c.Metrics.Correctness
		agg.SQLConsistency += c.Metrics.SQLConsistency
		agg.ResultConsistency += c.Metrics.ResultConsistency
	}
	n := float64(len(cases))
	agg.ExecSuccessRate = round4(agg.ExecSuccessRate / n)
	agg.Correctness = round4(agg.Correctness / n)
	agg.SQLConsistency = round4(agg.SQLConsistency / n)
	agg.ResultConsistency = round4(agg.ResultConsistency / n)
	return agg
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
