package evaluator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResultProps are structural assertions on a successful result.
type ResultProps struct {
	// ColumnsContains requires these column names, case-insensitive.
	ColumnsContains []string `yaml:"columns_contains" json:"columns_contains,omitempty"`

	RowCountEquals *int `yaml:"row_count_equals" json:"row_count_equals,omitempty"`
	MinRows        *int `yaml:"min_rows" json:"min_rows,omitempty"`
	MaxRows        *int `yaml:"max_rows" json:"max_rows,omitempty"`
}

// Expectation is the oracle for one case. All present checks must pass.
type Expectation struct {
	// SQLContains requires these fragments in the normalized final SQL.
	SQLContains []string `yaml:"sql_contains" json:"sql_contains,omitempty"`

	// SQLNotContains forbids these fragments.
	SQLNotContains []string `yaml:"sql_not_contains" json:"sql_not_contains,omitempty"`

	// SQLRegex must match the final SQL.
	SQLRegex string `yaml:"sql_regex" json:"sql_regex,omitempty"`

	ResultProps *ResultProps `yaml:"result_props" json:"result_props,omitempty"`

	// Rows is an exact row-set oracle. When present, a run is correct
	// only if its rows match cell for cell, in order.
	Rows [][]any `yaml:"rows" json:"rows,omitempty"`

	// NumericTolerance loosens cell comparison for the Rows oracle;
	// numeric cells match when within this absolute difference.
	NumericTolerance float64 `yaml:"numeric_tolerance" json:"numeric_tolerance,omitempty"`

	// AllowFail marks a question that is expected to end without a
	// result; failed runs then count as correct.
	AllowFail bool `yaml:"allow_fail" json:"allow_fail,omitempty"`
}

// Case is one evaluation question.
type Case struct {
	ID       string      `yaml:"id" json:"id"`
	Question string      `yaml:"question" json:"question"`
	Expect   Expectation `yaml:"expect" json:"expect"`
}

// LoadCases reads a case file. YAML files hold a list of cases; .jsonl
// files hold one case object per line.
func LoadCases(path string) ([]Case, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".jsonl":
		return loadJSONL(path)
	default:
		return nil, fmt.Errorf("evaluator: unsupported case file %s (want .yaml or .jsonl)", path)
	}
}

func loadYAML(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("evaluator: read %s: %w", path, err)
	}
	var cases []Case
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("evaluator: parse %s: %w", path, err)
	}
	return validateCases(path, cases)
}

func loadJSONL(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("evaluator: open %s: %w", path, err)
	}
	defer f.Close()

	var cases []Case
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("evaluator: %s line %d: %w", path, line, err)
		}
		cases = append(cases, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("evaluator: read %s: %w", path, err)
	}
	return validateCases(path, cases)
}

func validateCases(path string, cases []Case) ([]Case, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("evaluator: %s holds no cases", path)
	}
	seen := make(map[string]bool, len(cases))
	for i := range cases {
		c := &cases[i]
		if c.Question == "" {
			return nil, fmt.Errorf("evaluator: %s: case %d has no question", path, i+1)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", i+1)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("evaluator: %s: duplicate case id %q", path, c.ID)
		}
		seen[c.ID] = true
	}
	return cases, nil
}
