package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/stackreport/core"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
	"github.com/spf13/cobra"
)

// dailyCmd builds the daily stack, ingestion and error reports.
var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Build the daily stack, ingestion and sentry reports",
	Long: `Aggregate yesterday's stack analyses into the daily stack report.

Daily runs also:
- Reconcile analysed package versions against the graph and the public registries
- Collect the sentry error report of the deployment
- Ask the ingestion service to ingest latest versions missing from the graph

Examples:
  # Report on yesterday
  stackreport daily --report-bucket developer-analytics-audit-report

  # Re-run the report of a past day
  stackreport daily --date 2018-08-23`,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		runReport(schema.Daily)
	},
}

// weeklyCmd builds the weekly stack report. With --retrain it also collates and retrains.
var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Build the weekly stack report",
	Long: `Aggregate the last seven days of stack analyses into the weekly stack report.

With --retrain the window includes today and its unique stacks are merged into the
cumulative weekly collation. Training manifests are then written to the model
buckets and retraining is triggered for every ecosystem that has one. Schedule
one --retrain run per week so each week is collated once.

Examples:
  # Weekly report
  stackreport weekly

  # Weekly report with model retraining
  stackreport weekly --retrain`,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		runReport(schema.Weekly)
	},
}

// monthlyCmd builds the monthly stack report.
var monthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Build the monthly stack report for the previous calendar month",
	Long: `Aggregate the previous calendar month of stack analyses into the monthly stack
report and merge its unique stacks into the cumulative monthly collation.

Examples:
  # Report on last month
  stackreport monthly`,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		runReport(schema.Monthly)
	},
}

// runReport executes one report run and pushes its metrics.
func runReport(freq schema.Frequency) {
	svc, err := newServices(rootCtx, cfg)
	if err != nil {
		contract.LogFatal("Failed to initialize services", err)
	}
	defer func() { _ = svc.Close() }()

	summary, runErr := svc.assembler.Run(rootCtx, core.RunOptions{
		Frequency: freq,
		Today:     cfg.Today,
		Retrain:   cfg.Retrain && freq == schema.Weekly,
	})

	if err := svc.metrics.Push(rootCtx, cfg.PushgatewayURL, "stackreport"); err != nil {
		logger.Warn("Failed to push metrics", "url", cfg.PushgatewayURL, "err", err)
	}
	if runErr != nil {
		_ = svc.Close()
		contract.LogFatal("Report run failed", runErr)
	}
	printRunSummary(os.Stdout, summary)
}

// printRunSummary writes a short human-readable account of a run.
func printRunSummary(out io.Writer, s *core.RunSummary) {
	_, _ = fmt.Fprintf(out, "Run %s: %s report FROM %s TO %s\n", displayRunID(s.RunID), s.Window.Frequency, s.Window.Start, s.Window.End)
	_, _ = fmt.Fprintf(out, "Status: %s, stack requests: %d, duration: %s\n", s.Status, s.StackCount(), s.Duration.Round(time.Millisecond))
	switch {
	case s.Report != nil:
		_, _ = fmt.Fprintf(out, "Stack report: %s\n", s.Report.Key)
	case s.Status == schema.RunNoData:
		_, _ = fmt.Fprintln(out, "No stack analyses in the window, no stack report written.")
	}
	if s.Ingestion != nil {
		missing := 0
		for _, pkgs := range s.Ingestion.IngestionSummary.MissingLatestNode {
			missing += len(pkgs)
		}
		_, _ = fmt.Fprintf(out, "Ingestion report: %d ecosystems, %d latest versions missing from graph\n",
			len(s.Ingestion.IngestionSummary.Stats), missing)
	}
	if len(s.Collated) > 0 {
		_, _ = fmt.Fprintf(out, "Collated ecosystems: %d\n", len(s.Collated))
	}
	if len(s.Retrained) > 0 {
		names := make([]string, len(s.Retrained))
		for i, eco := range s.Retrained {
			names[i] = string(eco)
		}
		_, _ = fmt.Fprintf(out, "Retraining triggered: %s\n", strings.Join(names, ", "))
	}
}

func displayRunID(id string) string {
	if id == "" {
		return "(untracked)"
	}
	return id
}
