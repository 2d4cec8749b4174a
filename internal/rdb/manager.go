package rdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
)

// StoreManager owns the relational stores of one process run.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers
	queries      contract.ReportQueries
	runs         *RunStoreImpl
	closeOnce    sync.Once
}

// NewStoreManager connects the analytics queries and the run store.
// An empty runBackend disables run tracking.
func NewStoreManager(sourceBackend schema.DatabaseBackend, sourceConnStr string,
	runBackend schema.DatabaseBackend, runConnStr string,
) (*StoreManager, error) {
	queries, err := NewReportQueries(sourceBackend, sourceConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analytics queries: %w", err)
	}

	if runBackend == "" {
		runBackend = schema.NoneBackend
	}
	runs, err := NewRunStore(runBackend, runConnStr)
	if err != nil {
		_ = queries.Close()
		return nil, fmt.Errorf("failed to initialize run store: %w", err)
	}
	return &StoreManager{queries: queries, runs: runs}, nil
}

// Queries returns the analytics queries.
func (mgr *StoreManager) Queries() contract.ReportQueries {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.queries
}

// Runs returns the run store.
func (mgr *StoreManager) Runs() *RunStoreImpl {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}

// Close releases both stores. Later calls are no-ops.
func (mgr *StoreManager) Close() error {
	var err error
	mgr.closeOnce.Do(func() {
		mgr.Lock()
		defer mgr.Unlock()
		if mgr.queries != nil {
			err = errors.Join(err, mgr.queries.Close())
		}
		if mgr.runs != nil {
			err = errors.Join(err, mgr.runs.Close())
		}
	})
	return err
}

// ClearRuns drops the run tracking tables for the specified backend.
// Report documents stored in the same database are left alone.
// For NoneBackend, it does nothing.
func ClearRuns(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.NoneBackend:
		return nil
	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = contract.GetRunDBFilePath()
		}
		// Nothing to clear, and opening would create the file
		if _, err := os.Stat(connStr); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	case schema.MySQLBackend, schema.PostgreSQLBackend:
	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}

	db, err := Open(backend, connStr, "")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Frequencies first, then runs, and the migration bookkeeping last
	for _, table := range []string{frequenciesTable, reportRunsTable, "schema_migrations"} {
		if err := dropTable(db, backend, table); err != nil {
			return err
		}
	}
	return nil
}

// dropTable drops the table if it exists.
func dropTable(db *sql.DB, backend schema.DatabaseBackend, table string) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table, backend))
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
