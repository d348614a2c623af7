package generator

import (
	"context"
	"sync"

	"github.com/askdb-labs/askdb/internal/errors"
)

// Scripted replays a fixed sequence of outputs, one per Generate call.
// When the script runs out the last entry repeats. Used by tests and
// the demo pipeline; it sees the same Request shape a live generator
// would, so retry behavior exercises the real code path.
type Scripted struct {
	mu      sync.Mutex
	outputs []string
	calls   int

	// Requests records every request seen, for assertions.
	Requests []Request
}

// NewScripted builds a scripted generator from raw outputs. Outputs go
// through CleanOutput exactly like live ones.
func NewScripted(outputs ...string) *Scripted {
	return &Scripted{outputs: outputs}
}

func (s *Scripted) Generate(ctx context.Context, req Request) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, errors.NewGenerationFailed(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.outputs) == 0 {
		return Candidate{}, errors.NewGenerationFailed(errScriptEmpty)
	}
	idx := s.calls
	if idx >= len(s.outputs) {
		idx = len(s.outputs) - 1
	}
	s.calls++
	raw := s.outputs[idx]
	return Candidate{SQL: CleanOutput(raw), Raw: raw}, nil
}

func (s *Scripted) Deterministic() bool { return true }

// Calls returns how many times Generate ran.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errScriptEmpty = errorString("scripted generator has no outputs")

type errorString string

func (e errorString) Error() string { return string(e) }
