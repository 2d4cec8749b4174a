package rdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
)

// Tables read from the analytics database.
const (
	stackRequestsTable = "stack_analyses_request"
	workerResultsTable = "worker_results"
	taskMetaTable      = "celery_taskmeta"
)

// idBatchSize bounds the IN list of a single worker results query.
const idBatchSize = 500

// ReportQueriesImpl implements contract.ReportQueries over database/sql.
type ReportQueriesImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.ReportQueries = &ReportQueriesImpl{} // Compile-time check

// NewReportQueries connects to the analytics database of the given backend.
// The none backend yields a store that always returns empty results.
func NewReportQueries(backend schema.DatabaseBackend, connStr string) (contract.ReportQueries, error) {
	if backend == schema.NoneBackend {
		return &ReportQueriesImpl{backend: backend}, nil
	}
	db, err := Open(backend, connStr, contract.GetSourceDBFilePath())
	if err != nil {
		return nil, err
	}
	return &ReportQueriesImpl{db: db, backend: backend}, nil
}

// NewReportQueriesFromDB wraps an existing connection.
func NewReportQueriesFromDB(db *sql.DB, backend schema.DatabaseBackend) *ReportQueriesImpl {
	return &ReportQueriesImpl{db: db, backend: backend}
}

func (rq *ReportQueriesImpl) disabled() bool {
	return rq.backend == schema.NoneBackend || rq.db == nil
}

func (rq *ReportQueriesImpl) q(name string) string {
	return quoteIdent(name, rq.backend)
}

// sourceTime converts a bound for comparison against analytics timestamps.
func (rq *ReportQueriesImpl) sourceTime(t time.Time) any {
	if rq.backend == schema.SQLiteBackend {
		return t.UTC().Format(sqliteDateTime)
	}
	return t
}

// StackAnalysisIDs returns the ids of stack analysis requests submitted within [start, end].
// Both bounds are dates, so end matches requests submitted exactly at its midnight.
func (rq *ReportQueriesImpl) StackAnalysisIDs(ctx context.Context, start, end string) ([]string, error) {
	from, err := contract.ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := contract.ParseDate(end)
	if err != nil {
		return nil, err
	}
	if rq.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s BETWEEN %s AND %s",
		rq.q("id"), rq.q(stackRequestsTable), rq.q("submitTime"),
		placeholder(rq.backend, 1), placeholder(rq.backend, 2))

	rows, err := rq.db.QueryContext(ctx, query, rq.sourceTime(from), rq.sourceTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query stack analysis ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stack analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stack analysis ids: %w", err)
	}
	return ids, nil
}

// auditVersionExpr returns the SQL expression extracting task_result._audit.version.
func (rq *ReportQueriesImpl) auditVersionExpr() string {
	col := rq.q("task_result")
	switch rq.backend {
	case schema.PostgreSQLBackend:
		return col + "->'_audit'->>'version'"
	case schema.MySQLBackend:
		return "JSON_UNQUOTE(JSON_EXTRACT(" + col + ", '$._audit.version'))"
	default: // SQLite
		return "json_extract(" + col + ", '$._audit.version')"
	}
}

// WorkerResults returns the raw task results of a worker kind for the given request ids.
// Only results stamped with the kind's audit version are returned.
func (rq *ReportQueriesImpl) WorkerResults(ctx context.Context, kind schema.WorkerKind, ids []string) ([]json.RawMessage, error) {
	if rq.disabled() || len(ids) == 0 {
		return nil, nil
	}

	var results []json.RawMessage
	for lo := 0; lo < len(ids); lo += idBatchSize {
		hi := min(lo+idBatchSize, len(ids))
		batch, err := rq.workerResultsBatch(ctx, kind, ids[lo:hi])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (rq *ReportQueriesImpl) workerResultsBatch(ctx context.Context, kind schema.WorkerKind, ids []string) ([]json.RawMessage, error) {
	n := len(ids)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) AND %s = %s AND %s = %s",
		rq.q("task_result"), rq.q(workerResultsTable),
		rq.q("external_request_id"), placeholders(rq.backend, 1, n),
		rq.q("worker"), placeholder(rq.backend, n+1),
		rq.auditVersionExpr(), placeholder(rq.backend, n+2))

	args := make([]any, 0, n+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(kind), kind.AuditVersion())

	rows, err := rq.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query worker results for %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	var results []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan worker result: %w", err)
		}
		results = append(results, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worker results: %w", err)
	}
	return results, nil
}

// IngestionEPVs returns the package versions whose analysis started within [start, end).
func (rq *ReportQueriesImpl) IngestionEPVs(ctx context.Context, start, end string) ([]schema.EPV, error) {
	from, err := contract.ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := contract.ParseDate(end)
	if err != nil {
		return nil, err
	}
	if rq.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT ec.name, pk.name, vr.identifier
		FROM analyses an, packages pk, versions vr, ecosystems ec
		WHERE an.started_at >= %s AND an.started_at < %s
		AND an.version_id = vr.id AND vr.package_id = pk.id AND pk.ecosystem_id = ec.id`,
		placeholder(rq.backend, 1), placeholder(rq.backend, 2))

	rows, err := rq.db.QueryContext(ctx, query, rq.sourceTime(from), rq.sourceTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query ingested package versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var epvs []schema.EPV
	for rows.Next() {
		var eco, name, version string
		if err := rows.Scan(&eco, &name, &version); err != nil {
			return nil, fmt.Errorf("failed to scan package version: %w", err)
		}
		epvs = append(epvs, schema.EPV{Ecosystem: schema.Ecosystem(eco), Name: name, Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating package versions: %w", err)
	}
	return epvs, nil
}

// CleanupTaskMeta deletes task metadata finished at or before cutoff.
func (rq *ReportQueriesImpl) CleanupTaskMeta(ctx context.Context, cutoff time.Time) (int64, error) {
	return rq.deleteBefore(ctx, taskMetaTable, "date_done", cutoff)
}

// CleanupWorkerResults deletes worker results that ended at or before cutoff.
func (rq *ReportQueriesImpl) CleanupWorkerResults(ctx context.Context, cutoff time.Time) (int64, error) {
	return rq.deleteBefore(ctx, workerResultsTable, "ended_at", cutoff)
}

func (rq *ReportQueriesImpl) deleteBefore(ctx context.Context, table, column string, cutoff time.Time) (int64, error) {
	if rq.disabled() {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s <= %s", rq.q(table), rq.q(column), placeholder(rq.backend, 1))
	res, err := rq.db.ExecContext(ctx, query, rq.sourceTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows in %s: %w", table, err)
	}
	return n, nil
}

// Close closes the underlying DB connection.
func (rq *ReportQueriesImpl) Close() error {
	if rq.db != nil {
		return rq.db.Close()
	}
	return nil
}
