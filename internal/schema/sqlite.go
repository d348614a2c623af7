package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Provider loads schema snapshots. Engines without native introspection
// support here can implement this against their own catalogs.
type Provider interface {
	Load(ctx context.Context) (*Descriptor, error)
}

// SQLiteProvider introspects a SQLite database through sqlite_master
// and the table_info/foreign_key_list pragmas.
type SQLiteProvider struct {
	db *sql.DB
}

// NewSQLiteProvider wraps an open pool. A read-only pool is fine; the
// introspection queries never write.
func NewSQLiteProvider(db *sql.DB) *SQLiteProvider {
	return &SQLiteProvider{db: db}
}

// Load builds a finalized snapshot of every user table. Internal
// sqlite_* tables are skipped.
func (p *SQLiteProvider) Load(ctx context.Context) (*Descriptor, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("schema: scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}

	d := &Descriptor{}
	for _, name := range names {
		t, err := p.loadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		d.Tables = append(d.Tables, *t)
	}
	if err := d.Finalize(); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *SQLiteProvider) loadTable(ctx context.Context, name string) (*Table, error) {
	t := &Table{Name: name}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return nil, fmt.Errorf("schema: table_info %s: %w", name, err)
	}
	for rows.Next() {
		var (
			cid      int
			colName  string
			colType  string
			notNull  int
			deflt    sql.NullString
			pkeyRank int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &deflt, &pkeyRank); err != nil {
			rows.Close()
			return nil, fmt.Errorf("schema: table_info %s: %w", name, err)
		}
		t.Columns = append(t.Columns, Column{
			Name:       colName,
			Type:       colType,
			NotNull:    notNull != 0,
			PrimaryKey: pkeyRank > 0,
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("schema: table_info %s: %w", name, err)
	}
	rows.Close()

	fks, err := p.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", name))
	if err != nil {
		return nil, fmt.Errorf("schema: foreign_key_list %s: %w", name, err)
	}
	defer fks.Close()
	for fks.Next() {
		var (
			id, seq                  int
			refTable, from, to       string
			onUpdate, onDelete, mtch string
		)
		if err := fks.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &mtch); err != nil {
			return nil, fmt.Errorf("schema: foreign_key_list %s: %w", name, err)
		}
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Column:    from,
			RefTable:  refTable,
			RefColumn: to,
		})
	}
	if err := fks.Err(); err != nil {
		return nil, fmt.Errorf("schema: foreign_key_list %s: %w", name, err)
	}
	return t, nil
}
