package objstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "developer-analytics-audit-report"

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newSQLite(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	var got doc
	found, err := store.GetJSON(ctx, bucket, "v2/daily/2018-08-23.json", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.PutJSON(ctx, bucket, "v2/daily/2018-08-23.json", doc{Name: "first", Count: 1}))
	require.NoError(t, store.PutJSON(ctx, bucket, "v2/daily/2018-08-23.json", doc{Name: "second", Count: 2}))

	found, err = store.GetJSON(ctx, bucket, "v2/daily/2018-08-23.json", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc{Name: "second", Count: 2}, got)

	// Buckets are separate namespaces
	found, err = store.GetJSON(ctx, "npm-insights", "v2/daily/2018-08-23.json", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLStoreDecodeError(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.PutJSON(ctx, bucket, "k", []int{1, 2}))

	var got doc
	found, err := store.GetJSON(ctx, bucket, "k", &got)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestSQLStoreEncodeError(t *testing.T) {
	store := newSQLite(t)
	err := store.PutJSON(context.Background(), bucket, "k", map[string]any{"f": func() {}})
	assert.Error(t, err)
}

func TestSQLStoreKeys(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	for _, k := range []string{"v2/daily/2018-08-23.json", "v2/daily/2018-08-22.json", "v2/weekly/2018-08-22.json", "v2Xdaily/other.json"} {
		require.NoError(t, store.PutJSON(ctx, bucket, k, doc{}))
	}

	keys, err := store.Keys(ctx, bucket, "v2/daily/")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2/daily/2018-08-22.json", "v2/daily/2018-08-23.json"}, keys)

	// "_" is a LIKE wildcard but the prefix still matches literally
	keys, err = store.Keys(ctx, bucket, "v2_daily/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"none", Options{Backend: schema.NoneObjects}, false},
		{"sql default sqlite", Options{Backend: schema.SQLObjects, DBConnStr: filepath.Join(t.TempDir(), "objects.db")}, false},
		{"sql on none database", Options{Backend: schema.SQLObjects, DBBackend: schema.NoneBackend}, true},
		{"gcs missing key", Options{Backend: schema.GCSObjects, CredentialsFile: "/nonexistent/key.json"}, true},
		{"unknown", Options{Backend: "s3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(ctx, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestNoneStore(t *testing.T) {
	ctx := context.Background()
	var s NoneStore
	require.NoError(t, s.PutJSON(ctx, bucket, "k", doc{Name: "x"}))

	var got doc
	found, err := s.GetJSON(ctx, bucket, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)

	keys, err := s.Keys(ctx, bucket, "")
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGCSStoreMissingCredentials(t *testing.T) {
	_, err := NewGCSStore(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "service account key not found")
}
