package objstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/rdb"
	"github.com/huangsam/stackreport/schema"
)

// objectsTable holds one row per stored document.
const objectsTable = "report_objects"

// SQLStore keeps documents in a relational table next to the run history.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.ObjectStore = &SQLStore{} // Compile-time check

// NewSQLStore connects to the database and ensures the objects table exists.
func NewSQLStore(backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	if backend == "" {
		backend = schema.SQLiteBackend
	}
	if backend == schema.NoneBackend {
		return nil, fmt.Errorf("the sql object backend needs a database; use the none object backend instead")
	}
	db, err := rdb.Open(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return nil, err
	}
	store, err := NewSQLStoreFromDB(db, backend)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStoreFromDB wraps an existing connection.
func NewSQLStoreFromDB(db *sql.DB, backend schema.DatabaseBackend) (*SQLStore, error) {
	if _, err := db.Exec(createObjectsQuery(backend)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", objectsTable, err)
	}
	return &SQLStore{db: db, backend: backend}, nil
}

// createObjectsQuery returns the CREATE TABLE query for the given backend.
func createObjectsQuery(backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return `
			CREATE TABLE IF NOT EXISTS ` + "`report_objects`" + ` (
				bucket VARCHAR(255) NOT NULL,
				object_key VARCHAR(512) NOT NULL,
				body LONGBLOB NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (bucket, object_key)
			);
		`
	case schema.PostgreSQLBackend:
		return `
			CREATE TABLE IF NOT EXISTS "report_objects" (
				bucket TEXT NOT NULL,
				object_key TEXT NOT NULL,
				body BYTEA NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (bucket, object_key)
			);
		`
	default: // SQLite
		return `
			CREATE TABLE IF NOT EXISTS "report_objects" (
				bucket TEXT NOT NULL,
				object_key TEXT NOT NULL,
				body BLOB NOT NULL,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (bucket, object_key)
			);
		`
	}
}

// GetJSON decodes the stored document into v.
func (s *SQLStore) GetJSON(ctx context.Context, bucket, key string, v any) (bool, error) {
	var query string
	switch s.backend {
	case schema.PostgreSQLBackend:
		query = `SELECT body FROM "report_objects" WHERE bucket = $1 AND object_key = $2`
	case schema.MySQLBackend:
		query = "SELECT body FROM `report_objects` WHERE bucket = ? AND object_key = ?"
	default:
		query = `SELECT body FROM "report_objects" WHERE bucket = ? AND object_key = ?`
	}

	var body []byte
	err := s.db.QueryRowContext(ctx, query, bucket, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return true, fmt.Errorf("failed to decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// upsertQuery returns the UPSERT query for the backend.
func (s *SQLStore) upsertQuery() string {
	switch s.backend {
	case schema.MySQLBackend:
		return "INSERT INTO `report_objects` (bucket, object_key, body, updated_at) VALUES (?, ?, ?, ?) AS new" +
			" ON DUPLICATE KEY UPDATE body = new.body, updated_at = new.updated_at"
	case schema.PostgreSQLBackend:
		return `INSERT INTO "report_objects" (bucket, object_key, body, updated_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (bucket, object_key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
	default: // SQLite
		return `INSERT OR REPLACE INTO "report_objects" (bucket, object_key, body, updated_at) VALUES (?, ?, ?, ?)`
	}
}

// PutJSON encodes v and stores it, replacing any previous document at the key.
func (s *SQLStore) PutJSON(ctx context.Context, bucket, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", bucket, key, err)
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), bucket, key, body, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Keys lists the stored keys of a bucket under prefix, sorted.
func (s *SQLStore) Keys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var query string
	switch s.backend {
	case schema.PostgreSQLBackend:
		query = `SELECT object_key FROM "report_objects" WHERE bucket = $1 AND object_key LIKE $2 ORDER BY object_key`
	case schema.MySQLBackend:
		query = "SELECT object_key FROM `report_objects` WHERE bucket = ? AND object_key LIKE ? ORDER BY object_key"
	default:
		query = `SELECT object_key FROM "report_objects" WHERE bucket = ? AND object_key LIKE ? ORDER BY object_key`
	}

	// LIKE wildcards in the prefix only widen the match; HasPrefix narrows it again
	rows, err := s.db.QueryContext(ctx, query, bucket, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
