package policy

import (
	"strings"
	"testing"
)

func TestDefaultRuleSet(t *testing.T) {
	rs := Default()
	if !rs.AllowedKinds[KindSelect] {
		t.Fatal("SELECT should be allowed by default")
	}
	if rs.AllowedKinds[KindInsert] || rs.AllowedKinds[KindUpdate] || rs.AllowedKinds[KindDelete] {
		t.Fatal("write kinds must not be allowed by default")
	}
	if rs.DefaultRowLimit != 200 {
		t.Fatalf("default row limit = %d, want 200", rs.DefaultRowLimit)
	}
	if rs.MaxRowLimit != 1000 {
		t.Fatalf("max row limit = %d, want 1000", rs.MaxRowLimit)
	}
	if rs.AllowWindowFunctions {
		t.Fatal("window functions should be disabled by default")
	}
}

func TestEvaluateAllRulesRecorded(t *testing.T) {
	rs := Default()

	// Everything wrong at once: wrong kind, blocked keyword, two statements.
	d := rs.Evaluate(KindInsert, []string{"INSERT", "INTO", "T"}, 2)
	if d.Pass {
		t.Fatal("decision should fail")
	}
	if len(d.Rules) != 4 {
		t.Fatalf("got %d rule results, want 4 (no short-circuit)", len(d.Rules))
	}

	failed := map[string]bool{}
	for _, r := range d.Rules {
		if !r.Passed {
			failed[r.RuleID] = true
			if r.Reason == "" {
				t.Fatalf("failed rule %s has empty reason", r.RuleID)
			}
		}
	}
	for _, id := range []string{RuleSingleStatement, RuleStatementKind, RuleBlockedKeyword} {
		if !failed[id] {
			t.Fatalf("rule %s should have failed", id)
		}
	}
	if failed[RuleWindowFunction] {
		t.Fatal("window_function should pass when no OVER token is present")
	}
}

func TestEvaluatePassingSelect(t *testing.T) {
	rs := Default()
	d := rs.Evaluate(KindSelect, []string{"SELECT", "NAME", "FROM", "USERS"}, 1)
	if !d.Pass {
		t.Fatalf("clean SELECT should pass, failures: %v", d.FailureReasons())
	}
	for _, r := range d.Rules {
		if !r.Passed {
			t.Fatalf("rule %s unexpectedly failed: %s", r.RuleID, r.Reason)
		}
	}
}

func TestEvaluateBlockedKeywords(t *testing.T) {
	rs := Default()
	for _, kw := range []string{"DROP", "PRAGMA", "ATTACH", "VACUUM", "COMMIT"} {
		d := rs.Evaluate(KindSelect, []string{"SELECT", kw}, 1)
		if d.Pass {
			t.Fatalf("token %s should trip the blocked keyword rule", kw)
		}
	}

	// Lowercase tokens must match too.
	d := rs.Evaluate(KindSelect, []string{"select", "delete"}, 1)
	if d.Pass {
		t.Fatal("lowercase blocked keyword should still fail")
	}
}

func TestEvaluateWindowFunctions(t *testing.T) {
	rs := Default()
	d := rs.Evaluate(KindSelect, []string{"SELECT", "RANK", "OVER", "PARTITION"}, 1)
	if d.Pass {
		t.Fatal("OVER should be rejected while window functions are disabled")
	}

	rs.AllowWindowFunctions = true
	d = rs.Evaluate(KindSelect, []string{"SELECT", "RANK", "OVER", "PARTITION"}, 1)
	if !d.Pass {
		t.Fatalf("OVER should pass when enabled, failures: %v", d.FailureReasons())
	}
}

func TestFailureReasonsOrderAndDedupe(t *testing.T) {
	rs := Default()
	d := rs.Evaluate(KindSelect, []string{"DROP", "DROP", "DELETE"}, 1)
	reasons := d.FailureReasons()
	if len(reasons) != 1 {
		t.Fatalf("got %d failure reasons, want 1", len(reasons))
	}
	if !strings.Contains(reasons[0], "DROP") || !strings.Contains(reasons[0], "DELETE") {
		t.Fatalf("reason should name both keywords once: %q", reasons[0])
	}
	if strings.Count(reasons[0], "DROP") != 1 {
		t.Fatalf("duplicate keyword should be reported once: %q", reasons[0])
	}
}
