package report

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// NumericStats describe one numeric column.
type NumericStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// CategoryCount is one value of a categorical column with its count.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DateRange is the coverage of the first date-like column.
type DateRange struct {
	Column string `json:"column"`
	Min    string `json:"min"`
	Max    string `json:"max"`
}

// TableSummary is a lightweight per-column profile of a result set.
type TableSummary struct {
	Title   string `json:"title"`
	NRows   int    `json:"n_rows"`
	NCols   int    `json:"n_cols"`
	Columns []string `json:"columns"`

	Types          map[string]string          `json:"types"`
	Numeric        map[string]NumericStats    `json:"numeric,omitempty"`
	CategoricalTop map[string][]CategoryCount `json:"categorical_top,omitempty"`
	Dates          *DateRange                 `json:"date_range,omitempty"`

	// Bullets are the human-readable findings.
	Bullets []string `json:"bullets"`
}

const (
	typeNull    = "null"
	typeDate    = "date"
	typeNumeric = "numeric"
	typeText    = "text"

	sampleSize    = 50
	maxCategories = 5
)

// Summarize profiles a result set: infers a type per column, computes
// numeric stats, counts top categories, detects date coverage, and
// phrases the findings as bullets.
func Summarize(title string, columns []string, rows [][]any) *TableSummary {
	ts := &TableSummary{
		Title:          title,
		NRows:          len(rows),
		NCols:          len(columns),
		Columns:        columns,
		Types:          make(map[string]string, len(columns)),
		Numeric:        make(map[string]NumericStats),
		CategoricalTop: make(map[string][]CategoryCount),
	}

	for i, col := range columns {
		values := columnValues(rows, i)
		kind := inferType(values)
		ts.Types[col] = kind

		switch kind {
		case typeNumeric:
			if st, ok := numericStats(values); ok {
				ts.Numeric[col] = st
			}
		case typeText:
			if top := topCategories(values); len(top) > 0 {
				ts.CategoricalTop[col] = top
			}
		case typeDate:
			if ts.Dates == nil {
				if dr, ok := dateRange(col, values); ok {
					ts.Dates = dr
				}
			}
		}
	}

	ts.Bullets = bullets(ts, columns)
	return ts
}

func columnValues(rows [][]any, idx int) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		if idx < len(r) {
			out = append(out, r[idx])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func asDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if !dateRe.MatchString(s) {
			return time.Time{}, false
		}
		d, err := time.Parse("2006-01-02", s[:10])
		return d, err == nil
	}
	return time.Time{}, false
}

func inferType(values []any) string {
	var nonNull []any
	for _, v := range values {
		if !isNull(v) {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		return typeNull
	}
	sample := nonNull
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	dateHits := 0
	numHits := 0
	for _, v := range sample {
		if _, ok := asDate(v); ok {
			dateHits++
		}
		if _, ok := asFloat(v); ok {
			numHits++
		}
	}
	if dateHits >= max(3, int(0.6*float64(len(sample)))) {
		return typeDate
	}
	threshold := int(0.8 * float64(len(sample)))
	if len(sample) < 3 {
		threshold = 1
	}
	if numHits >= max(1, threshold) {
		return typeNumeric
	}
	return typeText
}

func numericStats(values []any) (NumericStats, bool) {
	var nums []float64
	for _, v := range values {
		if f, ok := asFloat(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return NumericStats{}, false
	}
	sort.Float64s(nums)
	sum := 0.0
	for _, f := range nums {
		sum += f
	}
	return NumericStats{
		Count:  len(nums),
		Min:    nums[0],
		Median: nums[int(math.Round(float64(len(nums)-1)*0.5))],
		Max:    nums[len(nums)-1],
		Mean:   sum / float64(len(nums)),
	}, true
}

func topCategories(values []any) []CategoryCount {
	counts := map[string]int{}
	total := 0
	for _, v := range values {
		if isNull(v) {
			continue
		}
		counts[strings.TrimSpace(fmt.Sprint(v))]++
		total++
	}
	if total == 0 {
		return nil
	}
	// Mostly-unique columns are identifiers, not categories.
	if len(counts) > max(50, total/2) {
		return nil
	}
	out := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > maxCategories {
		out = out[:maxCategories]
	}
	return out
}

func dateRange(col string, values []any) (*DateRange, bool) {
	var lo, hi time.Time
	found := false
	for _, v := range values {
		d, ok := asDate(v)
		if !ok {
			continue
		}
		if !found || d.Before(lo) {
			lo = d
		}
		if !found || d.After(hi) {
			hi = d
		}
		found = true
	}
	if !found {
		return nil, false
	}
	return &DateRange{
		Column: col,
		Min:    lo.Format("2006-01-02"),
		Max:    hi.Format("2006-01-02"),
	}, true
}

func bullets(ts *TableSummary, columns []string) []string {
	out := []string{fmt.Sprintf("Returned %d rows and %d columns.", ts.NRows, ts.NCols)}

	shown := 0
	for _, col := range columns {
		st, ok := ts.Numeric[col]
		if !ok || shown == 2 {
			continue
		}
		out = append(out, fmt.Sprintf("Numeric column `%s`: median %.4g, range %.4g to %.4g.",
			col, st.Median, st.Min, st.Max))
		shown++
	}

	shown = 0
	for _, col := range columns {
		top, ok := ts.CategoricalTop[col]
		if !ok || shown == 2 {
			continue
		}
		parts := make([]string, len(top))
		for i, cc := range top {
			parts[i] = fmt.Sprintf("%s (%d)", cc.Value, cc.Count)
		}
		out = append(out, fmt.Sprintf("Top `%s` values: %s.", col, strings.Join(parts, ", ")))
		shown++
	}

	if ts.Dates != nil {
		out = append(out, fmt.Sprintf("Date coverage in `%s`: %s to %s.",
			ts.Dates.Column, ts.Dates.Min, ts.Dates.Max))
	}
	return out
}

// MarkdownTable renders a preview table with at most maxRows rows.
func MarkdownTable(columns []string, rows [][]any, maxRows int) string {
	if maxRows <= 0 {
		maxRows = 15
	}
	esc := func(v any) string {
		s := ""
		if v != nil {
			s = fmt.Sprint(v)
		}
		s = strings.ReplaceAll(s, "\n", " ")
		return strings.ReplaceAll(s, "|", `\|`)
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	shown := rows
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, r := range shown {
		cells := make([]string, len(columns))
		for i := range columns {
			if i < len(r) {
				cells[i] = esc(r[i])
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if len(rows) > maxRows {
		fmt.Fprintf(&b, "\nShowing first %d rows of %d.\n", maxRows, len(rows))
	}
	return strings.TrimRight(b.String(), "\n")
}
