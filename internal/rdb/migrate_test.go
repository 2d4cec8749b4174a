package rdb

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRuns_NoneBackend(t *testing.T) {
	err := MigrateRuns(schema.NoneBackend, "", -1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "migrations are not supported for NoneBackend")
}

func TestMigrateRuns_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_migration.db")

	// Latest version
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, -1))
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)

	// Again is a no-op
	assert.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, -1))

	// Step down to version 1, all the way to 0, then back up
	assert.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 1))
	assert.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 0))
	assert.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 2))
}

func TestMigrateRuns_SQLiteInMemory(t *testing.T) {
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, ":memory:", -1))
}

func TestMigrateAfterStoreCreatedTables(t *testing.T) {
	db, err := Open(schema.SQLiteBackend, ":memory:", "")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = NewRunStoreFromDB(db, schema.SQLiteBackend)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, migrateDB(db, schema.SQLiteBackend, -1, &out))
	assert.Contains(t, out.String(), "to version 2")

	out.Reset()
	require.NoError(t, migrateDB(db, schema.SQLiteBackend, 0, &out))
	assert.Contains(t, out.String(), "rolled back")

	var tables int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'report_%'`).Scan(&tables))
	assert.Zero(t, tables)
}

func TestBackendMigrationsPresent(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend} {
		t.Run(string(backend), func(t *testing.T) {
			files, err := backendMigrations(backend)
			require.NoError(t, err)
			up, err := filepath.Glob("migrations/" + string(backend) + "/*.up.sql")
			require.NoError(t, err)
			down, err := filepath.Glob("migrations/" + string(backend) + "/*.down.sql")
			require.NoError(t, err)
			assert.Len(t, up, 2)
			assert.Len(t, down, 2)
			assert.NotNil(t, files)
		})
	}
}
