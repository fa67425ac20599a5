package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Schema describes the tables visible to the SQL agent.
type Schema struct {
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Table is a single table with its columns in ordinal order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column carries the attributes the LLM needs to write correct joins.
type Column struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Nullable         bool   `json:"is_nullable"`
	PrimaryKey       bool   `json:"is_primary_key"`
	ForeignKey       bool   `json:"is_foreign_key"`
	ReferencesTable  string `json:"references_table,omitempty"`
	ReferencesColumn string `json:"references_column,omitempty"`
}

// Relationship is a foreign key edge in "table.column" form.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// JSON renders the schema for the remote agent payload.
func (s *Schema) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Describe renders a compact textual form for LLM prompts:
// one line per column, foreign keys annotated with their target.
func (s *Schema) Describe() string {
	var b strings.Builder
	for _, table := range s.Tables {
		fmt.Fprintf(&b, "TABLE %s\n", table.Name)
		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  %s %s", col.Name, col.Type)
			if col.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}
			if col.ForeignKey && col.ReferencesTable != "" {
				fmt.Fprintf(&b, " REFERENCES %s(%s)", col.ReferencesTable, col.ReferencesColumn)
			}
			if !col.Nullable && !col.PrimaryKey {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
	}
	if len(s.Relationships) > 0 {
		b.WriteString("RELATIONSHIPS\n")
		for _, rel := range s.Relationships {
			fmt.Fprintf(&b, "  %s -> %s\n", rel.From, rel.To)
		}
	}
	return b.String()
}

const columnsQuery = `
SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    c.is_nullable = 'YES' AS is_nullable,
    pk.column_name IS NOT NULL AS is_primary_key,
    fk.column_name IS NOT NULL AS is_foreign_key,
    COALESCE(fk.foreign_table_name, '') AS references_table,
    COALESCE(fk.foreign_column_name, '') AS references_column
FROM information_schema.columns c
JOIN information_schema.tables t
    ON t.table_name = c.table_name
    AND t.table_schema = c.table_schema
    AND t.table_type = 'BASE TABLE'
LEFT JOIN (
    SELECT tc.table_name, kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON kcu.constraint_name = tc.constraint_name
        AND kcu.table_name = tc.table_name
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = 'public'
) pk ON pk.table_name = c.table_name AND pk.column_name = c.column_name
LEFT JOIN (
    SELECT
        tc.table_name,
        kcu.column_name,
        ccu.table_name AS foreign_table_name,
        ccu.column_name AS foreign_column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON kcu.constraint_name = tc.constraint_name
        AND kcu.table_name = tc.table_name
    JOIN information_schema.constraint_column_usage ccu
        ON ccu.constraint_name = tc.constraint_name
    WHERE tc.constraint_type = 'FOREIGN KEY'
      AND tc.table_schema = 'public'
) fk ON fk.table_name = c.table_name AND fk.column_name = c.column_name
WHERE c.table_schema = 'public'
ORDER BY c.table_name, c.ordinal_position`

const relationshipsQuery = `
SELECT
    tc.table_name,
    kcu.column_name,
    ccu.table_name AS foreign_table_name,
    ccu.column_name AS foreign_column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_name = tc.constraint_name
    AND kcu.table_name = tc.table_name
JOIN information_schema.constraint_column_usage ccu
    ON ccu.constraint_name = tc.constraint_name
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = 'public'
ORDER BY tc.table_name, kcu.column_name`

// Schema introspects the public schema.
func (s *Store) Schema(ctx context.Context) (*Schema, error) {
	rows, err := s.db.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	defer rows.Close()

	schema := &Schema{}
	byName := make(map[string]int)
	for rows.Next() {
		var tableName string
		var col Column
		if err := rows.Scan(&tableName, &col.Name, &col.Type, &col.Nullable,
			&col.PrimaryKey, &col.ForeignKey, &col.ReferencesTable, &col.ReferencesColumn); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		idx, ok := byName[tableName]
		if !ok {
			schema.Tables = append(schema.Tables, Table{Name: tableName})
			idx = len(schema.Tables) - 1
			byName[tableName] = idx
		}
		schema.Tables[idx].Columns = append(schema.Tables[idx].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	relRows, err := s.db.QueryContext(ctx, relationshipsQuery)
	if err != nil {
		return nil, fmt.Errorf("introspect relationships: %w", err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var table, column, foreignTable, foreignColumn string
		if err := relRows.Scan(&table, &column, &foreignTable, &foreignColumn); err != nil {
			return nil, fmt.Errorf("scan relationship row: %w", err)
		}
		schema.Relationships = append(schema.Relationships, Relationship{
			From: table + "." + column,
			To:   foreignTable + "." + foreignColumn,
		})
	}
	return schema, relRows.Err()
}
