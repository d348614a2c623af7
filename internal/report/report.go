// Package report runs a list of questions through the pipeline and
// renders a Markdown report plus a JSON run log. Failed questions stay
// in the report with their stop reason and best-effort SQL; a report
// that silently drops failures is lying about the pipeline.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/askdb-labs/askdb/internal/session"
)

// Item is one question in a report.
type Item struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Question string `yaml:"question" json:"question"`
}

// Config shapes one report run.
type Config struct {
	Title       string `yaml:"title"`
	PreviewRows int    `yaml:"preview_rows"`
}

// Runner produces one session per question; the orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, question string) (*session.Session, error)
}

// ItemLog is the JSON run log entry for one item.
type ItemLog struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Question  string        `json:"question"`
	OK        bool          `json:"ok"`
	Status    string        `json:"status"`
	Attempts  int           `json:"attempts"`
	FinalSQL  string        `json:"final_sql,omitempty"`
	RowCount  int           `json:"row_count,omitempty"`
	Summary   *TableSummary `json:"summary,omitempty"`
	StopError string        `json:"stop_error,omitempty"`
}

// Result is a finished report.
type Result struct {
	Markdown string
	Logs     []ItemLog
}

// LoadItems reads a YAML list of report items. Items missing an id or
// title get positional defaults.
func LoadItems(path string) ([]Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var items []Item
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("report: %s holds no items", path)
	}
	for i := range items {
		if items[i].Question == "" {
			return nil, fmt.Errorf("report: %s: item %d has no question", path, i+1)
		}
		if items[i].ID == "" {
			items[i].ID = fmt.Sprintf("q%d", i+1)
		}
		if items[i].Title == "" {
			items[i].Title = fmt.Sprintf("Query %d", i+1)
		}
	}
	return items, nil
}

// Generate runs every item and renders the report. Item failures are
// reported, not returned; the error covers infrastructure only.
func Generate(ctx context.Context, runner Runner, items []Item, cfg Config) (*Result, error) {
	if cfg.Title == "" {
		cfg.Title = "Analytics Report"
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 15
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", cfg.Title)
	fmt.Fprintf(&b, "Generated %s.\n\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))

	res := &Result{}
	for _, item := range items {
		s, err := runner.Run(ctx, item.Question)
		if err != nil {
			return nil, fmt.Errorf("report: item %s: %w", item.ID, err)
		}

		fmt.Fprintf(&b, "## %s\n\n**Question:** %s\n\n", item.Title, item.Question)
		log := ItemLog{
			ID:       item.ID,
			Title:    item.Title,
			Question: item.Question,
			Status:   string(s.Status),
			Attempts: len(s.Attempts),
		}

		if s.Status != session.StatusSuccess {
			fmt.Fprintf(&b, "**Status:** FAILED (%s)\n\n", s.Status)
			if sql := lastAttemptedSQL(s); sql != "" {
				fmt.Fprintf(&b, "**Last attempted SQL:**\n\n```sql\n%s\n```\n\n", sql)
			}
			if e := s.LastError(); e != nil {
				fmt.Fprintf(&b, "**Error:** %s: %s\n\n", e.Category, e.Reason)
				log.StopError = e.Reason
			}
			res.Logs = append(res.Logs, log)
			continue
		}

		log.OK = true
		log.FinalSQL = s.FinalSQL
		log.RowCount = s.Result.RowCount

		fmt.Fprintf(&b, "```sql\n%s\n```\n\n", s.FinalSQL)
		b.WriteString(MarkdownTable(s.Result.Columns, s.Result.Rows, cfg.PreviewRows))
		b.WriteString("\n\n")

		ts := Summarize(item.Title, s.Result.Columns, s.Result.Rows)
		log.Summary = ts
		for _, bullet := range ts.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		b.WriteString("\n")

		res.Logs = append(res.Logs, log)
	}

	res.Markdown = strings.TrimRight(b.String(), "\n") + "\n"
	return res, nil
}

// WriteFiles writes the Markdown report and the JSON run log.
func (r *Result) WriteFiles(mdPath, jsonPath string) error {
	if err := os.WriteFile(mdPath, []byte(r.Markdown), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", mdPath, err)
	}
	raw, err := json.MarshalIndent(r.Logs, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal run log: %w", err)
	}
	if err := os.WriteFile(jsonPath, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", jsonPath, err)
	}
	return nil
}

func lastAttemptedSQL(s *session.Session) string {
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].RewrittenSQL != "" {
			return s.Attempts[i].RewrittenSQL
		}
		if s.Attempts[i].SQL != "" {
			return s.Attempts[i].SQL
		}
	}
	return ""
}
