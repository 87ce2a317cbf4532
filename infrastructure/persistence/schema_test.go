package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/archdistill/infrastructure/persistence"
	"github.com/helixml/archdistill/internal/testdb"
)

func TestMigrate_ThenValidate(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewPlain(t)

	require.NoError(t, persistence.Migrate(ctx, db, nil))
	require.NoError(t, persistence.Migrate(ctx, db, nil))

	mismatches, err := persistence.ValidateSchema(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestValidateSchema_TableMissing(t *testing.T) {
	_, err := persistence.ValidateSchema(context.Background(), testdb.NewPlain(t))
	assert.ErrorIs(t, err, persistence.ErrTableMissing)
}

func TestValidateSchema_ReportsMismatches(t *testing.T) {
	db := testdb.WithSchema(t, `CREATE TABLE arch_items (
		id INTEGER PRIMARY KEY,
		repo TEXT,
		pr INTEGER,
		filepath TEXT,
		comment TEXT,
		diff TEXT,
		concerns BLOB,
		arch_summary TEXT,
		evidence TEXT
	)`)

	mismatches, err := persistence.ValidateSchema(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, mismatches, 2)

	assert.Equal(t, persistence.ColumnMismatch{Column: "concerns", Expected: "text", Actual: "blob"}, mismatches[0])
	assert.False(t, mismatches[0].Missing())
	assert.Equal(t, "embedding", mismatches[1].Column)
	assert.True(t, mismatches[1].Missing())
}

func TestMigrate_AddsMissingColumnOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := testdb.WithSchema(t, `CREATE TABLE arch_items (
		id INTEGER PRIMARY KEY,
		repo TEXT,
		pr INTEGER,
		filepath TEXT,
		comment TEXT,
		diff TEXT,
		concerns TEXT,
		arch_summary TEXT,
		evidence TEXT
	)`)

	require.NoError(t, persistence.Migrate(ctx, db, nil))

	mismatches, err := persistence.ValidateSchema(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}
