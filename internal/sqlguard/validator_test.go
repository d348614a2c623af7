package sqlguard

import (
	"strings"
	"testing"

	"github.com/askdb-labs/askdb/internal/errors"
	"github.com/askdb-labs/askdb/internal/policy"
)

func newValidator() *Validator {
	return NewValidator(policy.Default())
}

func TestValidateCleanSelect(t *testing.T) {
	v := newValidator().Validate("SELECT name, state FROM stations WHERE state = 'CA'")
	if !v.OK() {
		t.Fatalf("clean SELECT rejected: %v", v.Decision.FailureReasons())
	}
	if v.Kind != policy.KindSelect {
		t.Fatalf("kind = %s, want SELECT", v.Kind)
	}
	if v.Statement() == nil {
		t.Fatal("passing validation must carry an AST")
	}
	if v.Err() != nil {
		t.Fatalf("passing validation returned error: %v", v.Err())
	}
}

func TestValidateTrailingSemicolonIsOneStatement(t *testing.T) {
	v := newValidator().Validate("SELECT 1;")
	if !v.OK() {
		t.Fatalf("trailing semicolon rejected: %v", v.Decision.FailureReasons())
	}
}

func TestValidateMultiStatement(t *testing.T) {
	for _, sql := range []string{
		"SELECT 1; SELECT 2",
		"SELECT 1; DROP TABLE users",
		"SELECT 1;;SELECT 2;",
	} {
		v := newValidator().Validate(sql)
		if v.OK() {
			t.Fatalf("multi-statement text passed: %q", sql)
		}
		err := v.Err()
		if err == nil {
			t.Fatalf("failing validation returned nil error for %q", sql)
		}
		if err.Category != errors.CategoryPolicyViolation {
			t.Fatalf("category = %s, want policy_violation for %q", err.Category, sql)
		}
	}
}

func TestValidateWriteStatements(t *testing.T) {
	cases := map[string]policy.StatementKind{
		"INSERT INTO t (a) VALUES (1)": policy.KindInsert,
		"UPDATE t SET a = 1":           policy.KindUpdate,
		"DELETE FROM t WHERE a = 1":    policy.KindDelete,
	}
	for sql, kind := range cases {
		v := newValidator().Validate(sql)
		if v.OK() {
			t.Fatalf("write statement passed: %q", sql)
		}
		if v.Kind != kind {
			t.Fatalf("kind = %s, want %s for %q", v.Kind, kind, sql)
		}
	}
}

func TestValidateUnparseable(t *testing.T) {
	for _, sql := range []string{"", "   ", "SELEC * FORM t", "not sql at all ((("} {
		v := newValidator().Validate(sql)
		if v.OK() {
			t.Fatalf("garbage passed: %q", sql)
		}
		err := v.Err()
		if err == nil || err.Category != errors.CategoryUnparseable {
			t.Fatalf("category for %q should be unparseable, got %v", sql, err)
		}
		// Lexical rules must still be present in the record.
		ids := map[string]bool{}
		for _, r := range v.Decision.Rules {
			ids[r.RuleID] = true
		}
		for _, want := range []string{policy.RuleParse, policy.RuleSingleStatement, policy.RuleBlockedKeyword} {
			if !ids[want] {
				t.Fatalf("rule %s missing from record for %q", want, sql)
			}
		}
	}
}

func TestValidateKeywordInsideLiteralIsFine(t *testing.T) {
	v := newValidator().Validate("SELECT * FROM notes WHERE body = 'please DROP me a line'")
	if !v.OK() {
		t.Fatalf("keyword inside string literal tripped policy: %v", v.Decision.FailureReasons())
	}
}

func TestValidateSemicolonInsideLiteralIsFine(t *testing.T) {
	v := newValidator().Validate("SELECT * FROM notes WHERE body = 'a; b; c'")
	if !v.OK() {
		t.Fatalf("semicolon inside string literal counted as statement break: %v",
			v.Decision.FailureReasons())
	}
}

func TestValidateDisguisedSecondStatement(t *testing.T) {
	// A comment between statements must not hide the second one.
	v := newValidator().Validate("SELECT 1; -- harmless\nDELETE FROM t")
	if v.OK() {
		t.Fatal("comment-disguised second statement passed")
	}
}

func TestValidateEveryRuleRecordedOnPass(t *testing.T) {
	v := newValidator().Validate("SELECT a FROM b")
	// parse + 4 policy rules + lexical agreement.
	if len(v.Decision.Rules) != 6 {
		t.Fatalf("got %d rule results, want 6", len(v.Decision.Rules))
	}
	for _, r := range v.Decision.Rules {
		if !r.Passed {
			t.Fatalf("rule %s failed on a clean SELECT: %s", r.RuleID, r.Reason)
		}
	}
}

func TestNormalize(t *testing.T) {
	a := Normalize("select  *\n from t\twhere x = 1")
	b := Normalize("SELECT * FROM T WHERE X = 1")
	if a != b {
		t.Fatalf("normalized forms differ: %q vs %q", a, b)
	}
	if strings.Contains(a, "\n") || strings.Contains(a, "  ") {
		t.Fatalf("normalization left whitespace runs: %q", a)
	}
}
