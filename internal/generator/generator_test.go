package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCleanOutputStripsFences(t *testing.T) {
	raw := "```sql\nSELECT * FROM t\n```"
	if got := CleanOutput(raw); got != "SELECT * FROM t" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanOutputCutsNarration(t *testing.T) {
	raw := "Sure! Here is the query you asked for:\nSELECT name FROM stations"
	if got := CleanOutput(raw); got != "SELECT name FROM stations" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanOutputCutsAtSemicolon(t *testing.T) {
	raw := "SELECT 1; DROP TABLE users"
	if got := CleanOutput(raw); got != "SELECT 1" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanOutputKeepsSemicolonInLiteral(t *testing.T) {
	raw := "SELECT * FROM t WHERE a = 'x;y'"
	if got := CleanOutput(raw); got != raw {
		t.Fatalf("got %q", got)
	}
}

func TestBuildPromptStructure(t *testing.T) {
	p := BuildPrompt(Request{
		Question:   "How many stations are there by state?",
		SchemaBlob: "TABLE fuel_stations (...)",
		Feedback:   `{"category":"execution_error"}`,
		Attempt:    2,
	})
	rules := strings.Index(p, "exactly one SELECT")
	schema := strings.Index(p, "TABLE fuel_stations")
	feedback := strings.Index(p, "execution_error")
	question := strings.Index(p, "How many stations")
	if rules < 0 || schema < 0 || feedback < 0 || question < 0 {
		t.Fatalf("prompt missing sections:\n%s", p)
	}
	if !(rules < schema && schema < feedback && feedback < question) {
		t.Fatal("prompt sections out of order: rules, schema, feedback, question")
	}
}

func TestScriptedReplaysAndRepeatsLast(t *testing.T) {
	g := NewScripted("SELECT 1", "SELECT 2")
	ctx := context.Background()
	for i, want := range []string{"SELECT 1", "SELECT 2", "SELECT 2"} {
		c, err := g.Generate(ctx, Request{Attempt: i + 1})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if c.SQL != want {
			t.Fatalf("call %d = %q, want %q", i+1, c.SQL, want)
		}
	}
	if g.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", g.Calls())
	}
}

func TestHTTPGenerator(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.Prompt, "Question: how many?") {
			t.Errorf("prompt missing question: %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(generateResponse{SQL: "```sql\nSELECT COUNT(*) FROM t\n```"})
	}))
	defer srv.Close()

	g := NewHTTP(HTTPConfig{Endpoint: srv.URL, Token: "secret"})
	c, err := g.Generate(context.Background(), Request{Question: "how many?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if c.SQL != "SELECT COUNT(*) FROM t" {
		t.Fatalf("sql = %q", c.SQL)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestHTTPGeneratorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewHTTP(HTTPConfig{Endpoint: srv.URL})
	if _, err := g.Generate(context.Background(), Request{Question: "q"}); err == nil {
		t.Fatal("5xx response should fail generation")
	}
}
