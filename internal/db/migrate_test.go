package db

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, database *sqlx.DB, name string) bool {
	t.Helper()
	var count int
	err := database.Get(&count,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = $1`, name)
	require.NoError(t, err)
	return count > 0
}

func TestMigrationsUpAndDown(t *testing.T) {
	database, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	defer func() { require.NoError(t, Close(database)) }()

	require.NoError(t, RunMigrations(database.DB, "sqlite"))
	assert.True(t, tableExists(t, database, "images"))
	assert.True(t, tableExists(t, database, "image_origins"))
	assert.True(t, tableExists(t, database, "feedback"))

	// Rolling back one step drops only the newest migration.
	require.NoError(t, MigrateDown(database.DB, "sqlite"))
	assert.True(t, tableExists(t, database, "images"))
	assert.False(t, tableExists(t, database, "feedback"))

	require.NoError(t, MigrateDown(database.DB, "sqlite"))
	assert.False(t, tableExists(t, database, "images"))
	assert.False(t, tableExists(t, database, "image_origins"))

	// Up after a rollback restores the full schema.
	require.NoError(t, RunMigrations(database.DB, "sqlite"))
	assert.True(t, tableExists(t, database, "feedback"))
}
