// Package parquet provides data structures and functions for exporting report
// run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/stackreport/schema"
	"github.com/parquet-go/parquet-go"
)

// ReportRun represents a single tracked report run.
// This struct maps to the report_runs database table.
type ReportRun struct {
	// RunID is the uuid of the run
	RunID string `parquet:"run_id,snappy"`

	// Frequency is daily, weekly or monthly
	Frequency string `parquet:"frequency,snappy,dict"`

	// WindowStart and WindowEnd bound the reported window (YYYY-MM-DD)
	WindowStart string `parquet:"window_start,snappy"`
	WindowEnd   string `parquet:"window_end,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// StackCount is the number of stack requests aggregated
	StackCount int32 `parquet:"stack_count,snappy"`

	// Status is succeeded, no_data or failed
	Status string `parquet:"status,snappy,dict"`
}

// FrequencyRow is one counted item produced by a run.
// This struct maps to the report_frequencies database table.
type FrequencyRow struct {
	RunID     string `parquet:"run_id,snappy"`
	Ecosystem string `parquet:"ecosystem,snappy,dict"`
	Kind      string `parquet:"kind,snappy,dict"`
	ItemKey   string `parquet:"item_key,snappy"`
	Count     int32  `parquet:"count,snappy"`
}

// WriteReportRunsParquet writes a slice of ReportRun structs to a Parquet file.
func WriteReportRunsParquet(data []ReportRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteFrequenciesParquet writes a slice of FrequencyRow structs to a Parquet file.
func WriteFrequenciesParquet(data []FrequencyRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the struct tags
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertReportRunRecords converts schema.ReportRunRecord to ReportRun for Parquet export.
func ConvertReportRunRecords(records []schema.ReportRunRecord) []ReportRun {
	result := make([]ReportRun, len(records))
	for i, record := range records {
		result[i] = ReportRun{
			RunID:         record.RunID,
			Frequency:     record.Frequency,
			WindowStart:   record.WindowStart,
			WindowEnd:     record.WindowEnd,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			StackCount:    record.StackCount,
			Status:        record.Status,
		}
	}
	return result
}

// ConvertFrequencyRecords converts schema.FrequencyRecord to FrequencyRow for Parquet export.
func ConvertFrequencyRecords(records []schema.FrequencyRecord) []FrequencyRow {
	result := make([]FrequencyRow, len(records))
	for i, record := range records {
		result[i] = FrequencyRow{
			RunID:     record.RunID,
			Ecosystem: record.Ecosystem,
			Kind:      record.Kind,
			ItemKey:   record.ItemKey,
			Count:     record.Count,
		}
	}
	return result
}
