package sqlguard

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"

	"github.com/askdb-labs/askdb/internal/errors"
	"github.com/askdb-labs/askdb/internal/policy"
)

// Rewrite names recorded in Applied and in audit records.
const (
	RewriteLimitInjected   = "limit_injected"
	RewriteLimitCapped     = "limit_capped"
	RewriteLimitNormalized = "limit_normalized"
)

// Rewrite is the outcome of the defensive rewrite pass.
type Rewrite struct {
	// SQL is the statement to execute. When Applied is empty this is
	// the validated input verbatim.
	SQL string

	// Applied lists the rewrites that fired, in order.
	Applied []string
}

// Rewriter applies defensive transformations to a validated statement.
// The only transformation is row limiting: inject a LIMIT when absent,
// cap one that exceeds the maximum, never widen one that is tighter.
// Safe for concurrent use.
type Rewriter struct {
	rules *policy.RuleSet
}

// NewRewriter creates a rewriter bound to the given rule set.
func NewRewriter(rules *policy.RuleSet) *Rewriter {
	return &Rewriter{rules: rules}
}

// Apply rewrites a validation that passed every rule. It is idempotent:
// applying it to its own output changes nothing. The input validation's
// AST is mutated in place when a rewrite fires.
func (r *Rewriter) Apply(v *Validation) (*Rewrite, *errors.Error) {
	if v == nil || !v.OK() {
		return nil, errors.NewPolicyViolation("rewrite requires a passing validation")
	}
	stmt := v.Statement()
	if stmt == nil {
		return nil, errors.NewUnparseable("no parsed statement available")
	}

	limit := limitSlot(stmt)
	if limit == nil {
		// Statement kind carries no LIMIT clause. The validator only
		// passes SELECT/UNION, so this should not happen.
		return nil, errors.NewPolicyViolation(
			fmt.Sprintf("statement kind %s cannot be row-limited", v.Kind))
	}

	var applied []string
	switch {
	case *limit == nil:
		*limit = &sqlparser.Limit{
			Rowcount: sqlparser.NewIntVal([]byte(strconv.Itoa(r.rules.DefaultRowLimit))),
		}
		applied = append(applied, RewriteLimitInjected)

	default:
		n, ok := intRowcount((*limit).Rowcount)
		if !ok {
			// Non-literal row count. Replace it with the maximum so the
			// executed statement always carries a concrete bound.
			(*limit).Rowcount = sqlparser.NewIntVal([]byte(strconv.Itoa(r.rules.MaxRowLimit)))
			applied = append(applied, RewriteLimitNormalized)
		} else if n > r.rules.MaxRowLimit {
			(*limit).Rowcount = sqlparser.NewIntVal([]byte(strconv.Itoa(r.rules.MaxRowLimit)))
			applied = append(applied, RewriteLimitCapped)
		}
	}

	if len(applied) == 0 {
		return &Rewrite{SQL: v.Input}, nil
	}
	return &Rewrite{SQL: sqlparser.String(stmt), Applied: applied}, nil
}

// limitSlot returns the address of the statement's Limit field, or nil
// for statement kinds that carry none.
func limitSlot(stmt sqlparser.Statement) **sqlparser.Limit {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return &s.Limit
	case *sqlparser.Union:
		return &s.Limit
	}
	return nil
}

func intRowcount(expr sqlparser.Expr) (int, bool) {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return 0, false
	}
	n, err := strconv.Atoi(string(val.Val))
	if err != nil {
		return 0, false
	}
	return n, true
}
