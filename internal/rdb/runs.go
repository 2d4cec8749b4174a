package rdb

import (
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
)

// Table names for run tracking.
const (
	reportRunsTable  = "report_runs"
	frequenciesTable = "report_frequencies"
)

// RunStoreImpl implements the contract.RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (*RunStoreImpl, error) {
	if backend == schema.NoneBackend {
		// No-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	}
	db, err := Open(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return nil, err
	}
	store, err := NewRunStoreFromDB(db, backend)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewRunStoreFromDB wraps an existing connection and ensures the run tables exist.
func NewRunStoreFromDB(db *sql.DB, backend schema.DatabaseBackend) (*RunStoreImpl, error) {
	if err := createRunTables(db, backend); err != nil {
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

func (rs *RunStoreImpl) disabled() bool {
	return rs.backend == schema.NoneBackend || rs.db == nil
}

func (rs *RunStoreImpl) table(name string) string {
	return quoteIdent(name, rs.backend)
}

func (rs *RunStoreImpl) ph(n int) string {
	return placeholder(rs.backend, n)
}

// BeginRun creates a new report run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(freq schema.Frequency, windowStart, windowEnd string, startTime time.Time) (string, error) {
	if rs.disabled() {
		return "", nil
	}

	runID := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (run_id, frequency, window_start, window_end, start_time, stack_count, status)
		VALUES (%s, %s, %s, %s, %s, 0, %s)`,
		rs.table(reportRunsTable), rs.ph(1), rs.ph(2), rs.ph(3), rs.ph(4), rs.ph(5), rs.ph(6))

	_, err := rs.db.Exec(query, runID, string(freq), windowStart, windowEnd,
		formatTime(startTime, rs.backend), string(schema.RunRunning))
	if err != nil {
		return "", fmt.Errorf("failed to insert report run: %w", err)
	}
	return runID, nil
}

// scanTime reads a run store time column for the backend.
func (rs *RunStoreImpl) scanTime(row *sql.Row) (time.Time, error) {
	if rs.backend == schema.SQLiteBackend {
		var s string
		if err := row.Scan(&s); err != nil {
			return time.Time{}, err
		}
		return parseTime(s)
	}
	// MySQL and PostgreSQL store as native datetime
	var t time.Time
	err := row.Scan(&t)
	return t, err
}

// EndRun updates the report run with completion data.
func (rs *RunStoreImpl) EndRun(runID string, endTime time.Time, stackCount int, status schema.RunStatus) error {
	if rs.disabled() {
		return nil
	}

	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, rs.table(reportRunsTable), rs.ph(1))
	startTime, err := rs.scanTime(rs.db.QueryRow(query, runID))
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %s: %w", runID, err)
	}
	durationMs := endTime.Sub(startTime).Milliseconds()

	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, stack_count = %s, status = %s WHERE run_id = %s`,
		rs.table(reportRunsTable), rs.ph(1), rs.ph(2), rs.ph(3), rs.ph(4), rs.ph(5))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, stackCount, string(status), runID); err != nil {
		return fmt.Errorf("failed to update report run: %w", err)
	}
	return nil
}

// upsertFrequencyQuery returns the UPSERT query for one frequency row.
func (rs *RunStoreImpl) upsertFrequencyQuery() string {
	t := rs.table(frequenciesTable)
	switch rs.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (run_id, ecosystem, kind, item_key, item_count) VALUES (?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE item_count = new.item_count`, t)
	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (run_id, ecosystem, kind, item_key, item_count) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id, ecosystem, kind, item_key) DO UPDATE SET item_count = EXCLUDED.item_count`, t)
	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (run_id, ecosystem, kind, item_key, item_count) VALUES (?, ?, ?, ?, ?)`, t)
	}
}

// RecordFrequencies stores one frequency map produced by a run in a single transaction.
func (rs *RunStoreImpl) RecordFrequencies(runID string, eco schema.Ecosystem, kind string, freq schema.FrequencyMap) error {
	if rs.disabled() || len(freq) == 0 {
		return nil
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(rs.upsertFrequencyQuery())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare frequency insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, key := range slices.Sorted(maps.Keys(freq)) {
		if _, err := stmt.Exec(runID, string(eco), kind, key, freq[key]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert frequency %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frequencies: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStoreStatus, error) {
	status := schema.RunStoreStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.disabled() {
		return status, nil
	}

	runs := rs.table(reportRunsTable)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var err error
		if err = rs.db.QueryRow(fmt.Sprintf("SELECT run_id FROM %s ORDER BY start_time DESC LIMIT 1", runs)).
			Scan(&status.LastRunID); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime, err = rs.scanTime(rs.db.QueryRow(fmt.Sprintf("SELECT MAX(start_time) FROM %s", runs)))
		if err != nil {
			return status, fmt.Errorf("failed to get last run time: %w", err)
		}
		status.OldestRunTime, err = rs.scanTime(rs.db.QueryRow(fmt.Sprintf("SELECT MIN(start_time) FROM %s", runs)))
		if err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(stack_count), 0) FROM %s", runs)).
			Scan(&status.TotalStacks); err != nil {
			return status, fmt.Errorf("failed to get total stacks: %w", err)
		}
	}

	for _, table := range []string{reportRunsTable, frequenciesTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves all report runs, oldest first.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.ReportRunRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, frequency, window_start, window_end, start_time, end_time,
		run_duration_ms, stack_count, status FROM %s ORDER BY start_time, run_id`, rs.table(reportRunsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query report runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ReportRunRecord
	for rows.Next() {
		var r schema.ReportRunRecord
		switch rs.backend {
		case schema.SQLiteBackend:
			var startStr string
			var endStr *string
			if err := rows.Scan(&r.RunID, &r.Frequency, &r.WindowStart, &r.WindowEnd, &startStr, &endStr,
				&r.RunDurationMs, &r.StackCount, &r.Status); err != nil {
				return nil, fmt.Errorf("failed to scan report run: %w", err)
			}
			if r.StartTime, err = parseTime(startStr); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if endStr != nil {
				end, err := parseTime(*endStr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				r.EndTime = &end
			}
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&r.RunID, &r.Frequency, &r.WindowStart, &r.WindowEnd, &r.StartTime, &r.EndTime,
				&r.RunDurationMs, &r.StackCount, &r.Status); err != nil {
				return nil, fmt.Errorf("failed to scan report run: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report runs: %w", err)
	}
	return results, nil
}

// GetAllFrequencies retrieves every recorded frequency row.
func (rs *RunStoreImpl) GetAllFrequencies() ([]schema.FrequencyRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, ecosystem, kind, item_key, item_count FROM %s
		ORDER BY run_id, ecosystem, kind, item_key`, rs.table(frequenciesTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.FrequencyRecord
	for rows.Next() {
		var r schema.FrequencyRecord
		if err := rows.Scan(&r.RunID, &r.Ecosystem, &r.Kind, &r.ItemKey, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan frequency: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frequencies: %w", err)
	}
	return results, nil
}
