package rdb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunStoreNoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun(schema.Daily, "2018-08-22", "2018-08-23", time.Now())
	assert.NoError(t, err)
	assert.Empty(t, runID)

	assert.NoError(t, store.EndRun("x", time.Now(), 1, schema.RunSucceeded))
	assert.NoError(t, store.RecordFrequencies("x", schema.NPM, schema.KindStack, schema.FrequencyMap{"a 1": 1}))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "none", status.Backend)

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Nil(t, runs)
	assert.NoError(t, store.Close())
}

func TestRunStoreLifecycle(t *testing.T) {
	store := newMemoryRunStore(t)
	start := time.Date(2018, 8, 23, 10, 0, 0, 0, time.UTC)

	runID, err := store.BeginRun(schema.Daily, "2018-08-22", "2018-08-23", start)
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err, "run ids are uuids")

	freq := schema.FrequencyMap{"express 4.16.3": 3, "lodash 4.17.10": 1}
	require.NoError(t, store.RecordFrequencies(runID, schema.NPM, schema.KindDependency, freq))
	require.NoError(t, store.EndRun(runID, start.Add(1500*time.Millisecond), 4, schema.RunSucceeded))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, "daily", run.Frequency)
	assert.Equal(t, "2018-08-22", run.WindowStart)
	assert.Equal(t, "2018-08-23", run.WindowEnd)
	assert.True(t, start.Equal(run.StartTime))
	require.NotNil(t, run.EndTime)
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int32(1500), *run.RunDurationMs)
	assert.Equal(t, int32(4), run.StackCount)
	assert.Equal(t, "succeeded", run.Status)

	rows, err := store.GetAllFrequencies()
	require.NoError(t, err)
	assert.Equal(t, []schema.FrequencyRecord{
		{RunID: runID, Ecosystem: "npm", Kind: schema.KindDependency, ItemKey: "express 4.16.3", Count: 3},
		{RunID: runID, Ecosystem: "npm", Kind: schema.KindDependency, ItemKey: "lodash 4.17.10", Count: 1},
	}, rows)
}

func TestRunStoreUnfinishedRun(t *testing.T) {
	store := newMemoryRunStore(t)
	_, err := store.BeginRun(schema.Weekly, "2018-08-16", "2018-08-22", time.Now())
	require.NoError(t, err)

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].EndTime)
	assert.Nil(t, runs[0].RunDurationMs)
	assert.Equal(t, string(schema.RunRunning), runs[0].Status)
}

func TestRunStoreEndUnknownRun(t *testing.T) {
	store := newMemoryRunStore(t)
	err := store.EndRun("missing", time.Now(), 0, schema.RunFailed)
	assert.Error(t, err)
}

func TestRecordFrequenciesOverwritesCounts(t *testing.T) {
	store := newMemoryRunStore(t)
	runID, err := store.BeginRun(schema.Monthly, "2018-08-01", "2018-08-31", time.Now())
	require.NoError(t, err)

	require.NoError(t, store.RecordFrequencies(runID, schema.PyPI, schema.KindStack, schema.FrequencyMap{"flask 1.0": 1}))
	require.NoError(t, store.RecordFrequencies(runID, schema.PyPI, schema.KindStack, schema.FrequencyMap{"flask 1.0": 5}))
	require.NoError(t, store.RecordFrequencies(runID, schema.PyPI, schema.KindStack, nil))

	rows, err := store.GetAllFrequencies()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(5), rows[0].Count)
}

func TestRunStoreStatus(t *testing.T) {
	store := newMemoryRunStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 0, status.TotalRuns)
	assert.Equal(t, int64(0), status.TableSizes[reportRunsTable])

	first := time.Date(2018, 8, 22, 10, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	id1, err := store.BeginRun(schema.Daily, "2018-08-21", "2018-08-22", first)
	require.NoError(t, err)
	require.NoError(t, store.EndRun(id1, first.Add(time.Second), 2, schema.RunSucceeded))
	id2, err := store.BeginRun(schema.Daily, "2018-08-22", "2018-08-23", second)
	require.NoError(t, err)
	require.NoError(t, store.EndRun(id2, second.Add(time.Second), 3, schema.RunSucceeded))
	require.NoError(t, store.RecordFrequencies(id2, schema.Maven, schema.KindUnknown, schema.FrequencyMap{"a:b 1.0": 1}))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, id2, status.LastRunID)
	assert.True(t, second.Equal(status.LastRunTime))
	assert.True(t, first.Equal(status.OldestRunTime))
	assert.Equal(t, 5, status.TotalStacks)
	assert.Equal(t, int64(2), status.TableSizes[reportRunsTable])
	assert.Equal(t, int64(1), status.TableSizes[frequenciesTable])
}

func TestFormatTimeSortsLexically(t *testing.T) {
	whole := time.Date(2018, 8, 23, 10, 0, 0, 0, time.UTC)
	fraction := whole.Add(500 * time.Millisecond)

	a := formatTime(whole, schema.SQLiteBackend).(string)
	b := formatTime(fraction, schema.SQLiteBackend).(string)
	assert.Less(t, a, b)

	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.True(t, fraction.Equal(parsed))

	assert.Equal(t, whole, formatTime(whole, schema.PostgreSQLBackend))
}
