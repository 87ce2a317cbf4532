package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/archdistill/internal/database"
)

// ErrTableMissing indicates arch_items does not exist.
var ErrTableMissing = errors.New("table arch_items does not exist")

// EmbeddingDimension is the vector width of the embedding column.
const EmbeddingDimension = 768

const (
	pgCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgCreateTable = `
CREATE TABLE IF NOT EXISTS arch_items (
    id SERIAL PRIMARY KEY,
    repo TEXT,
    pr INTEGER,
    filepath TEXT,
    comment TEXT,
    diff TEXT,
    concerns JSONB,
    arch_summary TEXT,
    evidence TEXT,
    embedding VECTOR(768)
)`

	pgColumnTypes = `
SELECT a.attname AS name, format_type(a.atttypid, a.atttypmod) AS type
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = 'arch_items' AND a.attnum > 0 AND NOT a.attisdropped`

	sqliteColumnTypes = `SELECT name, type FROM pragma_table_info('arch_items')`
)

// column is one expected arch_items column.
type column struct {
	name     string
	postgres string
	sqlite   string
}

// expectedColumns lists the arch_items columns besides the id, in table order.
var expectedColumns = []column{
	{"repo", "text", "text"},
	{"pr", "integer", "integer"},
	{"filepath", "text", "text"},
	{"comment", "text", "text"},
	{"diff", "text", "text"},
	{"concerns", "jsonb", "text"},
	{"arch_summary", "text", "text"},
	{"evidence", "text", "text"},
	{"embedding", fmt.Sprintf("vector(%d)", EmbeddingDimension), "text"},
}

// ColumnMismatch describes a column whose type differs from the expected one.
// Actual is empty when the column is missing.
type ColumnMismatch struct {
	Column   string
	Expected string
	Actual   string
}

// Missing reports whether the column does not exist at all.
func (m ColumnMismatch) Missing() bool { return m.Actual == "" }

// Migrate creates arch_items or brings an existing table to the expected
// column types. On PostgreSQL it also enables pgvector. Missing columns are
// added and mismatched ones converted in place. On SQLite, GORM creates the
// table and adds missing columns; column types there are left as they are.
func Migrate(ctx context.Context, db database.Database, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if !db.IsPostgres() {
		if err := db.Session(ctx).AutoMigrate(&ArchItemModel{}); err != nil {
			return fmt.Errorf("auto migrate arch_items: %w", err)
		}
		return nil
	}

	gdb := db.Session(ctx)
	if err := gdb.Exec(pgCreateExtension).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	if !gdb.Migrator().HasTable("arch_items") {
		logger.Info("arch_items missing, creating table")
		if err := gdb.Exec(pgCreateTable).Error; err != nil {
			return fmt.Errorf("create arch_items: %w", err)
		}
		return nil
	}

	mismatches, err := ValidateSchema(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range mismatches {
		var stmt string
		if m.Missing() {
			logger.Info("adding missing column", "column", m.Column, "type", m.Expected)
			stmt = fmt.Sprintf(`ALTER TABLE arch_items ADD COLUMN %s %s`, m.Column, m.Expected)
		} else {
			logger.Info("fixing column type", "column", m.Column, "from", m.Actual, "to", m.Expected)
			stmt = fmt.Sprintf(`ALTER TABLE arch_items ALTER COLUMN %s TYPE %s USING %s::%s`,
				m.Column, m.Expected, m.Column, m.Expected)
		}
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate column %s: %w", m.Column, err)
		}
	}
	return nil
}

// ValidateSchema compares the arch_items columns with the expected types.
// It returns ErrTableMissing when the table does not exist.
func ValidateSchema(ctx context.Context, db database.Database) ([]ColumnMismatch, error) {
	gdb := db.Session(ctx)
	if !gdb.Migrator().HasTable("arch_items") {
		return nil, ErrTableMissing
	}

	query := sqliteColumnTypes
	if db.IsPostgres() {
		query = pgColumnTypes
	}

	var rows []struct {
		Name string
		Type string
	}
	if err := gdb.Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("read arch_items columns: %w", err)
	}

	actual := make(map[string]string, len(rows))
	for _, r := range rows {
		actual[r.Name] = strings.ToLower(r.Type)
	}

	var mismatches []ColumnMismatch
	for _, c := range expectedColumns {
		want := c.sqlite
		if db.IsPostgres() {
			want = c.postgres
		}
		if got := actual[c.name]; got != want {
			mismatches = append(mismatches, ColumnMismatch{Column: c.name, Expected: want, Actual: got})
		}
	}
	return mismatches, nil
}
