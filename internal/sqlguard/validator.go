// Package sqlguard is the trust boundary for generated SQL. Candidate
// text is parsed, checked against the policy rule set, and defensively
// rewritten before anything reaches a database connection. Nothing in
// this package executes SQL.
package sqlguard

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/askdb-labs/askdb/internal/errors"
	"github.com/askdb-labs/askdb/internal/policy"
)

// Validation is the immutable outcome of validating one candidate.
// The Decision records every rule that was evaluated, pass or fail.
type Validation struct {
	// Input is the candidate text, trimmed.
	Input string

	// Kind is the statement kind, or KindUnknown when parsing failed.
	Kind policy.StatementKind

	// Tokens are the uppercase word tokens outside literals and comments.
	Tokens []string

	// Decision is the full per-rule record.
	Decision policy.Decision

	stmt sqlparser.Statement
}

// OK reports whether every rule passed.
func (v *Validation) OK() bool { return v.Decision.Pass }

// Statement returns the parsed AST, or nil when parsing failed.
func (v *Validation) Statement() sqlparser.Statement { return v.stmt }

// Err converts a failed validation into a typed error. Parse failures
// classify as unparseable; everything else is a policy violation.
// Returns nil when the validation passed.
func (v *Validation) Err() *errors.Error {
	if v.Decision.Pass {
		return nil
	}
	for _, r := range v.Decision.Rules {
		if r.RuleID == policy.RuleParse && !r.Passed {
			return errors.NewUnparseable(r.Reason)
		}
	}
	return errors.NewPolicyViolation(v.Decision.FailureReasons()...)
}

// Validator validates candidate SQL against an immutable rule set.
// Safe for concurrent use.
type Validator struct {
	rules *policy.RuleSet
}

// NewValidator creates a validator bound to the given rule set.
func NewValidator(rules *policy.RuleSet) *Validator {
	return &Validator{rules: rules}
}

// Validate checks one candidate. It never executes anything and always
// returns a Validation carrying the complete rule record, even when the
// candidate fails early checks.
func (val *Validator) Validate(raw string) *Validation {
	input := strings.TrimSpace(raw)
	tokens, lexCount := lex(input)

	v := &Validation{
		Input:  input,
		Kind:   policy.KindUnknown,
		Tokens: tokens,
	}

	stmt, parserCount, parseErr := parseOne(input)
	if parseErr != nil {
		// The lexical rules still apply without an AST, so the audit
		// record is complete rather than cut off at the parse step.
		d := val.rules.Evaluate(policy.KindUnknown, tokens, lexCount)
		d.Rules = append([]policy.RuleResult{{
			RuleID: policy.RuleParse,
			Passed: false,
			Reason: fmt.Sprintf("parse error: %v", parseErr),
		}}, d.Rules...)
		d.Pass = false
		v.Decision = d
		return v
	}

	v.stmt = stmt
	v.Kind = kindOf(stmt)

	// The parser and the lexer count statements independently. Feed the
	// worse of the two into the single-statement rule and record whether
	// they agreed; a disagreement means one layer was fooled.
	count := lexCount
	if parserCount > count {
		count = parserCount
	}

	d := val.rules.Evaluate(v.Kind, tokens, count)
	d.Rules = append([]policy.RuleResult{{
		RuleID: policy.RuleParse,
		Passed: true,
	}}, d.Rules...)

	if lexCount == parserCount {
		d.Rules = append(d.Rules, policy.RuleResult{
			RuleID: policy.RuleLexicalAgree,
			Passed: true,
		})
	} else {
		d.Pass = false
		d.Rules = append(d.Rules, policy.RuleResult{
			RuleID: policy.RuleLexicalAgree,
			Passed: false,
			Reason: fmt.Sprintf("lexical scan found %d statement(s), parser found %d", lexCount, parserCount),
		})
	}

	v.Decision = d
	return v
}

// parseOne splits the candidate into statement pieces and parses the
// first. The piece count feeds the single-statement rule; a candidate
// with trailing statements still yields an AST for the audit record.
func parseOne(input string) (sqlparser.Statement, int, error) {
	pieces, err := sqlparser.SplitStatementToPieces(input)
	if err != nil {
		return nil, 0, err
	}

	var nonEmpty []string
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	if len(nonEmpty) == 0 {
		return nil, 0, fmt.Errorf("empty statement")
	}

	stmt, err := sqlparser.Parse(nonEmpty[0])
	if err != nil {
		return nil, len(nonEmpty), err
	}
	return stmt, len(nonEmpty), nil
}

func kindOf(stmt sqlparser.Statement) policy.StatementKind {
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return policy.KindSelect
	case *sqlparser.Insert:
		return policy.KindInsert
	case *sqlparser.Update:
		return policy.KindUpdate
	case *sqlparser.Delete:
		return policy.KindDelete
	case *sqlparser.DDL:
		return policy.KindDDL
	default:
		return policy.KindOther
	}
}
