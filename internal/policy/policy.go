// Package policy defines the static rule set describing what SQL is
// permitted. The rule set is pure data: loaded once at startup, immutable,
// and shared read-only by all concurrent sessions.
package policy

import (
	"fmt"
	"strings"
)

// StatementKind is the top-level kind of a parsed statement.
type StatementKind string

const (
	KindSelect  StatementKind = "SELECT"
	KindInsert  StatementKind = "INSERT"
	KindUpdate  StatementKind = "UPDATE"
	KindDelete  StatementKind = "DELETE"
	KindDDL     StatementKind = "DDL"
	KindOther   StatementKind = "OTHER"
	KindUnknown StatementKind = "UNKNOWN"
)

// Rule identifiers recorded in every ValidationDecision.
const (
	RuleParse           = "parse"
	RuleSingleStatement = "single_statement"
	RuleStatementKind   = "statement_kind"
	RuleBlockedKeyword  = "blocked_keyword"
	RuleWindowFunction  = "window_function"
	RuleLexicalAgree    = "statement_count_agreement"
)

// blockedKeywords are rejected as top-level tokens, case-insensitive and
// word-boundary matched. The list covers writes, schema changes,
// transactions, and the ATTACH/PRAGMA escape hatches.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "REPLACE", "UPSERT",
	"CREATE", "ALTER", "DROP", "TRUNCATE",
	"BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE",
	"VACUUM", "REINDEX",
	"ATTACH", "DETACH", "PRAGMA",
}

// RuleResult records the evaluation of one rule.
type RuleResult struct {
	RuleID string `json:"rule_id"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Decision is the outcome of evaluating a candidate against the rule set.
// Every rule is evaluated and recorded even after the first failure, so
// the audit trail is complete rather than short-circuited.
type Decision struct {
	Pass  bool
	Rules []RuleResult
}

// FailureReasons returns the reasons of all failed rules, in order.
func (d Decision) FailureReasons() []string {
	var out []string
	for _, r := range d.Rules {
		if !r.Passed {
			out = append(out, r.Reason)
		}
	}
	return out
}

// record appends a rule result and folds it into the overall decision.
func (d *Decision) record(id string, passed bool, reason string) {
	if !passed {
		d.Pass = false
	}
	d.Rules = append(d.Rules, RuleResult{RuleID: id, Passed: passed, Reason: reason})
}

// RuleSet is the immutable policy. Construct with Default and adjust
// fields before first use; never mutate a shared instance afterwards.
type RuleSet struct {
	// AllowedKinds is the set of permitted statement kinds.
	AllowedKinds map[StatementKind]bool

	// BlockedKeywords are rejected wherever they appear as a token.
	BlockedKeywords []string

	// DefaultRowLimit is injected when a statement carries no LIMIT.
	DefaultRowLimit int

	// MaxRowLimit caps any LIMIT a candidate specifies.
	MaxRowLimit int

	// AllowWindowFunctions gates the OVER clause. Disabled by default.
	AllowWindowFunctions bool

	blocked map[string]bool
}

// Default returns the standard rule set: SELECT only, the full blocked
// keyword list, LIMIT 200 by default, LIMIT 1000 at most.
func Default() *RuleSet {
	rs := &RuleSet{
		AllowedKinds:    map[StatementKind]bool{KindSelect: true},
		BlockedKeywords: blockedKeywords,
		DefaultRowLimit: 200,
		MaxRowLimit:     1000,
	}
	return rs
}

func (rs *RuleSet) blockedSet() map[string]bool {
	if rs.blocked == nil {
		rs.blocked = make(map[string]bool, len(rs.BlockedKeywords))
		for _, kw := range rs.BlockedKeywords {
			rs.blocked[strings.ToUpper(kw)] = true
		}
	}
	return rs.blocked
}

// Evaluate checks a parsed structure against the rule set. It is a pure
// function of policy state and its arguments. Every rule is evaluated;
// nothing short-circuits.
func (rs *RuleSet) Evaluate(kind StatementKind, tokens []string, statementCount int) Decision {
	d := Decision{Pass: true}

	if statementCount == 1 {
		d.record(RuleSingleStatement, true, "")
	} else {
		d.record(RuleSingleStatement, false,
			fmt.Sprintf("expected exactly one statement, found %d", statementCount))
	}

	if rs.AllowedKinds[kind] {
		d.record(RuleStatementKind, true, "")
	} else {
		d.record(RuleStatementKind, false,
			fmt.Sprintf("statement kind %s is not permitted", kind))
	}

	blocked := rs.blockedSet()
	var hits []string
	hasOver := false
	for _, tok := range tokens {
		up := strings.ToUpper(tok)
		if blocked[up] {
			hits = append(hits, up)
		}
		if up == "OVER" {
			hasOver = true
		}
	}
	if len(hits) == 0 {
		d.record(RuleBlockedKeyword, true, "")
	} else {
		d.record(RuleBlockedKeyword, false,
			fmt.Sprintf("blocked keyword(s): %s", strings.Join(dedupe(hits), ", ")))
	}

	if hasOver && !rs.AllowWindowFunctions {
		d.record(RuleWindowFunction, false, "window functions are disabled")
	} else {
		d.record(RuleWindowFunction, true, "")
	}

	return d
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
