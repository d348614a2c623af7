// Package generator turns a question plus schema context into candidate
// SQL. Model inference itself stays external; implementations here are
// either scripted (tests, demos) or a thin HTTP client to an inference
// endpoint. Everything a generator returns is untrusted.
package generator

import (
	"context"
	"fmt"
	"strings"
)

// Request is everything a generator may see for one attempt.
type Request struct {
	// Question is the user's natural-language question.
	Question string

	// SchemaBlob is the serialized schema snapshot.
	SchemaBlob string

	// SchemaVersion is the content hash of the snapshot the blob was
	// rendered from.
	SchemaVersion string

	// Feedback is the structured failure feedback from the previous
	// attempt, empty on the first one.
	Feedback string

	// Attempt is 1-based.
	Attempt int
}

// Candidate is one generated answer, already cleaned.
type Candidate struct {
	// SQL is the candidate statement text.
	SQL string

	// Raw is the generator output before cleaning, kept for audit.
	Raw string
}

// Generator produces one candidate per call.
type Generator interface {
	// Generate returns a candidate for the request. Implementations
	// must honor ctx cancellation.
	Generate(ctx context.Context, req Request) (Candidate, error)

	// Deterministic reports whether identical requests yield identical
	// candidates. The evaluator notes this next to consistency scores.
	Deterministic() bool
}

// BuildPrompt renders the full prompt for one attempt. The hard rules
// head the prompt so feedback text can never displace them.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You translate questions into SQL.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Output exactly one SELECT statement.\n")
	b.WriteString("- No explanations, no markdown, no code fences.\n")
	b.WriteString("- Use only the tables and columns listed below.\n")
	b.WriteString("- Never write, alter, or drop anything.\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(req.SchemaBlob)
	b.WriteString("\n\n")
	if req.Feedback != "" {
		fmt.Fprintf(&b, "Your previous attempt failed. Feedback:\n%s\n\n", req.Feedback)
	}
	fmt.Fprintf(&b, "Question: %s\nSQL:", req.Question)
	return b.String()
}

// CleanOutput strips the decoration models wrap around SQL: code
// fences, leading narration, and anything after the first semicolon.
// The result is still untrusted; validation happens downstream.
func CleanOutput(raw string) string {
	text := strings.TrimSpace(raw)

	// Drop code fences wherever they appear.
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	// Cut narration before the statement itself.
	upper := strings.ToUpper(text)
	if idx := strings.Index(upper, "SELECT"); idx > 0 {
		text = text[idx:]
	}

	// One statement only; everything after the first semicolon is noise
	// at best and a second statement at worst.
	if idx := semicolonOutsideLiterals(text); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// semicolonOutsideLiterals finds the first semicolon not inside a
// single-quoted literal, or -1.
func semicolonOutsideLiterals(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}
