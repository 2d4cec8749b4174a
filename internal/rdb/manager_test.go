package rdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreManager(t *testing.T) {
	mgr, err := NewStoreManager(schema.SQLiteBackend, ":memory:", schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)

	assert.NotNil(t, mgr.Queries())
	require.NotNil(t, mgr.Runs())

	_, err = mgr.Runs().BeginRun(schema.Daily, "2018-08-22", "2018-08-23", time.Now())
	assert.NoError(t, err)

	assert.NoError(t, mgr.Close())
	// Second close is a no-op
	assert.NoError(t, mgr.Close())
}

func TestStoreManagerWithoutRunTracking(t *testing.T) {
	mgr, err := NewStoreManager(schema.NoneBackend, "", "", "")
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	status, err := mgr.Runs().GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
}

func TestStoreManagerUnsupportedBackend(t *testing.T) {
	_, err := NewStoreManager("oracle", "", schema.NoneBackend, "")
	assert.Error(t, err)

	_, err = NewStoreManager(schema.NoneBackend, "", "oracle", "")
	assert.Error(t, err)
}

func TestClearRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	_, err = store.BeginRun(schema.Daily, "2018-08-22", "2018-08-23", time.Now())
	require.NoError(t, err)
	// Unrelated tables in the same file survive
	_, err = store.db.Exec(`CREATE TABLE report_objects (object_key TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath))

	db, err := Open(schema.SQLiteBackend, dbPath, "")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var names []string
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	assert.Equal(t, []string{"report_objects"}, names)
}

func TestClearRunsMissingFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "absent.db")
	require.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath))

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "clearing must not create the file")
}

func TestClearRunsBackends(t *testing.T) {
	assert.NoError(t, ClearRuns(schema.NoneBackend, ""))
	assert.Error(t, ClearRuns("oracle", ""))
}

func TestDropTableRejectsUnsafeNames(t *testing.T) {
	db, err := Open(schema.SQLiteBackend, ":memory:", "")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, name := range []string{"", "runs; DROP TABLE x", "1runs", "run-store"} {
		assert.Error(t, dropTable(db, schema.SQLiteBackend, name), name)
	}
	assert.NoError(t, dropTable(db, schema.SQLiteBackend, "never_created"))
}
