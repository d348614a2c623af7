package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSONLogger writes one JSON object per line to a writer. A mutex
// serializes writers so concurrent sessions never interleave bytes.
type JSONLogger struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewJSONLogger wraps a writer. If the writer is also a Closer it is
// closed by Close.
func NewJSONLogger(w io.Writer) *JSONLogger {
	l := &JSONLogger{w: w}
	if c, ok := w.(io.Closer); ok {
		l.c = c
	}
	return l
}

// OpenJSONFile appends to a JSON-lines file, creating it if needed.
func OpenJSONFile(path string) (*JSONLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return NewJSONLogger(f), nil
}

type envelope struct {
	Kind    string `json:"kind"`
	Attempt any    `json:"attempt,omitempty"`
	Session any    `json:"session,omitempty"`
}

func (l *JSONLogger) LogAttempt(_ context.Context, rec *AttemptRecord) error {
	return l.write(envelope{Kind: "attempt", Attempt: rec})
}

func (l *JSONLogger) LogSession(_ context.Context, rec *SessionRecord) error {
	return l.write(envelope{Kind: "session", Session: rec})
}

func (l *JSONLogger) write(env envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

func (l *JSONLogger) Close() error {
	if l.c != nil {
		return l.c.Close()
	}
	return nil
}
