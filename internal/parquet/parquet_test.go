package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/stackreport/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRuns() []ReportRun {
	start := time.Date(2018, 8, 23, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	duration := int32(90000)
	return []ReportRun{
		{
			RunID:         "6f1c1f5e-0000-4000-8000-000000000001",
			Frequency:     "daily",
			WindowStart:   "2018-08-22",
			WindowEnd:     "2018-08-23",
			StartTime:     start,
			EndTime:       &end,
			RunDurationMs: &duration,
			StackCount:    12,
			Status:        "succeeded",
		},
		{
			// Still running
			RunID:       "6f1c1f5e-0000-4000-8000-000000000002",
			Frequency:   "weekly",
			WindowStart: "2018-08-16",
			WindowEnd:   "2018-08-22",
			StartTime:   start,
		},
	}
}

func TestReportRunStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(ReportRun))
	require.NotNil(t, schema)

	expectedColumns := []string{
		"run_id",
		"frequency",
		"window_start",
		"window_end",
		"start_time",
		"end_time",
		"run_duration_ms",
		"stack_count",
		"status",
	}
	for _, colName := range expectedColumns {
		_, ok := schema.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestFrequencyRowStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(FrequencyRow))
	for _, colName := range []string{"run_id", "ecosystem", "kind", "item_key", "count"} {
		_, ok := schema.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestWriteReportRunsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report_runs.parquet")
	data := sampleRuns()

	require.NoError(t, WriteReportRunsParquet(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[ReportRun](file)
	defer reader.Close()

	readData := make([]ReportRun, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, len(data), n)

	assert.Equal(t, data[0].RunID, readData[0].RunID)
	assert.Equal(t, "daily", readData[0].Frequency)
	assert.Equal(t, int32(12), readData[0].StackCount)
	require.NotNil(t, readData[0].EndTime)
	assert.WithinDuration(t, *data[0].EndTime, *readData[0].EndTime, time.Nanosecond)
	require.NotNil(t, readData[0].RunDurationMs)
	assert.Equal(t, int32(90000), *readData[0].RunDurationMs)

	// Nullable fields survive as nil
	assert.Nil(t, readData[1].EndTime)
	assert.Nil(t, readData[1].RunDurationMs)
	assert.Equal(t, "", readData[1].Status)
}

func TestWriteFrequenciesParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "frequencies.parquet")
	data := []FrequencyRow{
		{RunID: "r1", Ecosystem: "npm", Kind: schema.KindStack, ItemKey: "express 4.16.3", Count: 3},
		{RunID: "r1", Ecosystem: "pypi", Kind: schema.KindDependency, ItemKey: "flask 1.0", Count: 1},
	}
	require.NoError(t, WriteFrequenciesParquet(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[FrequencyRow](file)
	defer reader.Close()

	readData := make([]FrequencyRow, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, data, readData)
}

func TestWriteParquetEmptyData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")

	require.NoError(t, WriteReportRunsParquet([]ReportRun{}, outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "Output file should contain schema even if empty")
}

func TestWriteParquetInvalidPath(t *testing.T) {
	err := WriteReportRunsParquet(sampleRuns(), "/nonexistent/directory/output.parquet")
	assert.Error(t, err)

	err = WriteFrequenciesParquet(nil, "/nonexistent/directory/output.parquet")
	assert.Error(t, err)
}

func TestConvertRecords(t *testing.T) {
	start := time.Date(2018, 8, 23, 10, 0, 0, 0, time.UTC)
	runs := ConvertReportRunRecords([]schema.ReportRunRecord{{
		RunID:       "r1",
		Frequency:   "monthly",
		WindowStart: "2018-08-01",
		WindowEnd:   "2018-08-31",
		StartTime:   start,
		StackCount:  4,
		Status:      "no_data",
	}})
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].RunID)
	assert.Equal(t, "2018-08-31", runs[0].WindowEnd)
	assert.Equal(t, int32(4), runs[0].StackCount)
	assert.Nil(t, runs[0].EndTime)

	rows := ConvertFrequencyRecords([]schema.FrequencyRecord{
		{RunID: "r1", Ecosystem: "maven", Kind: schema.KindUnknown, ItemKey: "a:b 1.0", Count: 2},
	})
	assert.Equal(t, []FrequencyRow{{RunID: "r1", Ecosystem: "maven", Kind: schema.KindUnknown, ItemKey: "a:b 1.0", Count: 2}}, rows)

	assert.Empty(t, ConvertReportRunRecords(nil))
}
