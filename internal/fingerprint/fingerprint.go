// Package fingerprint produces stable digests of query results and SQL
// text. Two executions returning the same columns and rows in the same
// order share a fingerprint regardless of driver value types.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

type payload struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Result digests a result set as SHA-256 over its canonical JSON form.
func Result(columns []string, rows [][]any) string {
	canon := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = canonical(cell)
		}
		canon[i] = cells
	}
	raw, err := json.Marshal(payload{Columns: columns, Rows: canon})
	if err != nil {
		// Only unmarshalable driver types can land here; digest the
		// error text so the fingerprint is still deterministic.
		raw = []byte(err.Error())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// SQL digests normalized SQL text.
func SQL(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// canonical maps driver-specific value types onto JSON-stable ones.
func canonical(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
