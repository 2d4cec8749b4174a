package rdb

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/huangsam/stackreport/schema"
)

// PrintRunStatus prints run store status information.
func PrintRunStatus(out io.Writer, status schema.RunStoreStatus) {
	_, _ = fmt.Fprintf(out, "Run Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(out, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(out, "Total Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(out, "Last Run ID: %s\n", status.LastRunID)
		_, _ = fmt.Fprintf(out, "Last Run: %s\n", status.LastRunTime.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(out, "Oldest Run: %s\n", status.OldestRunTime.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(out, "Total Stacks Aggregated: %d\n", status.TotalStacks)
	}
	_, _ = fmt.Fprintln(out, "Table Sizes:")
	for _, table := range slices.Sorted(maps.Keys(status.TableSizes)) {
		_, _ = fmt.Fprintf(out, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}
