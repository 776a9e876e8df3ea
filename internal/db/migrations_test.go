package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "nested", "agentca.db"))
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, RunMigrations(database))
	require.NoError(t, RunMigrations(database))

	var version int
	require.NoError(t, database.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	for _, table := range []string{"records", "audit_logs"} {
		var count int
		require.NoError(t, database.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count))
		assert.Equal(t, 1, count, table)
	}
}
