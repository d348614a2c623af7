// Package schema loads database structure for prompt grounding and
// pins it to a version hash so mid-session schema changes are caught
// instead of silently answered against a stale picture.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// ForeignKey describes one outgoing reference.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Table describes one table.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Descriptor is an immutable snapshot of a database's structure.
type Descriptor struct {
	Tables []Table `json:"tables"`

	// Version is the SHA-256 of the canonical JSON form. Two loads of
	// an unchanged database produce the same version.
	Version string `json:"version"`
}

// Finalize sorts the snapshot into canonical order and computes the
// version hash. Loaders call it once; callers never mutate afterwards.
func (d *Descriptor) Finalize() error {
	sort.Slice(d.Tables, func(i, j int) bool { return d.Tables[i].Name < d.Tables[j].Name })
	d.Version = ""
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("schema: canonicalize: %w", err)
	}
	sum := sha256.Sum256(raw)
	d.Version = hex.EncodeToString(sum[:])
	return nil
}

// PromptBlob renders the snapshot as the compact text block handed to
// the generator. maxBytes > 0 truncates defensively; a huge schema must
// not blow the prompt budget.
func (d *Descriptor) PromptBlob(maxBytes int) string {
	var b strings.Builder
	for _, t := range d.Tables {
		b.WriteString("TABLE ")
		b.WriteString(t.Name)
		b.WriteString(" (\n")
		for _, c := range t.Columns {
			b.WriteString("  ")
			b.WriteString(c.Name)
			b.WriteString(" ")
			b.WriteString(c.Type)
			if c.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}
			if c.NotNull {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
		b.WriteString(")\n")
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&b, "-- %s.%s references %s.%s\n", t.Name, fk.Column, fk.RefTable, fk.RefColumn)
		}
		b.WriteString("\n")
	}
	blob := strings.TrimRight(b.String(), "\n")
	if maxBytes > 0 && len(blob) > maxBytes {
		blob = blob[:maxBytes] + "\n-- schema truncated"
	}
	return blob
}

// TableNames returns the table names in canonical order.
func (d *Descriptor) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}
