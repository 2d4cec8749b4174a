package cmd

import (
	"fmt"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/spf13/cobra"
)

// cleanupCmd applies the retention policy of the analytics database.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete task metadata and worker results past their retention",
	Long: `Remove rows from the analytics database that are older than the configured retention.

Retention:
- keep-meta-days: celery task metadata
- keep-worker-result-days: worker results

A failure on one table does not stop the other.

Examples:
  # Apply the default retention
  stackreport cleanup

  # Keep two weeks of worker results
  STACKREPORT_KEEP_WORKER_RESULT_DAYS=14 stackreport cleanup`,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		svc, err := newServices(rootCtx, cfg)
		if err != nil {
			contract.LogFatal("Failed to initialize services", err)
		}
		defer func() { _ = svc.Close() }()

		res := svc.assembler.Cleanup(rootCtx, cfg.KeepMetaDays, cfg.KeepWorkerResultDays)
		fmt.Printf("Deleted %d task metadata rows and %d worker results.\n", res.TaskMetaDeleted, res.WorkerResultDeleted)
	},
}
