package rdb

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/stackreport/internal/parquet"
	"github.com/huangsam/stackreport/schema"
)

// RunHistory is the read side of a run store used for export.
type RunHistory interface {
	GetStatus() (schema.RunStoreStatus, error)
	GetAllRuns() ([]schema.ReportRunRecord, error)
	GetAllFrequencies() ([]schema.FrequencyRecord, error)
}

var _ RunHistory = &RunStoreImpl{} // Compile-time check

// ExecuteRunExport exports run history to two Parquet files prefixed by outputFile.
func ExecuteRunExport(store RunHistory, outputFile string, out io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run store status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(out, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(out, "Total report runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(out, "Total frequency records: %d\n", status.TableSizes[frequenciesTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve report runs: %w", err)
	}
	freqs, err := store.GetAllFrequencies()
	if err != nil {
		return fmt.Errorf("failed to retrieve frequencies: %w", err)
	}

	runsFile := outputFile + ".report_runs.parquet"
	parquetRuns := parquet.ConvertReportRunRecords(runs)
	if err := parquet.WriteReportRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write report runs: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d report runs to: %s\n", len(parquetRuns), runsFile)

	freqFile := outputFile + ".report_frequencies.parquet"
	parquetFreqs := parquet.ConvertFrequencyRecords(freqs)
	if err := parquet.WriteFrequenciesParquet(parquetFreqs, freqFile); err != nil {
		return fmt.Errorf("failed to write frequencies: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d frequency records to: %s\n", len(parquetFreqs), freqFile)
	return nil
}
