package fingerprint

import (
	"testing"
	"time"
)

func TestResultStableAcrossValueTypes(t *testing.T) {
	a := Result([]string{"n"}, [][]any{{[]byte("x")}})
	b := Result([]string{"n"}, [][]any{{"x"}})
	if a != b {
		t.Fatal("[]byte and string cells should fingerprint identically")
	}
}

func TestResultOrderSensitive(t *testing.T) {
	a := Result([]string{"n"}, [][]any{{1}, {2}})
	b := Result([]string{"n"}, [][]any{{2}, {1}})
	if a == b {
		t.Fatal("row order must affect the fingerprint")
	}
}

func TestResultColumnsMatter(t *testing.T) {
	a := Result([]string{"a"}, nil)
	b := Result([]string{"b"}, nil)
	if a == b {
		t.Fatal("column names must affect the fingerprint")
	}
}

func TestResultTimeNormalizedToUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ts := time.Date(2026, 3, 1, 13, 0, 0, 0, loc)
	a := Result([]string{"t"}, [][]any{{ts}})
	b := Result([]string{"t"}, [][]any{{ts.UTC()}})
	if a != b {
		t.Fatal("equal instants in different zones should fingerprint identically")
	}
}

func TestSQLDeterministic(t *testing.T) {
	if SQL("SELECT 1") != SQL("SELECT 1") {
		t.Fatal("SQL fingerprint not deterministic")
	}
	if SQL("SELECT 1") == SQL("SELECT 2") {
		t.Fatal("different SQL should differ")
	}
}
