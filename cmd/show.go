package cmd

import (
	"github.com/huangsam/stackreport/core"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/outwriter"
	"github.com/huangsam/stackreport/schema"
	"github.com/spf13/cobra"
)

// showCmd renders a persisted report.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Render a stored stack or ingestion report",
	Long: `Load a report document from the report bucket and render it.

Without --name the report of the latest complete window is shown: yesterday
for daily reports, last week for weekly and last month for monthly.

Output formats:
- text: summary tables with trending lists per ecosystem
- csv:  one row per counted key, for spreadsheets
- json: the stored document

Examples:
  # Yesterday's stack report
  stackreport show

  # A monthly report as CSV
  stackreport show --frequency monthly --name 2018-07 --output csv

  # The ingestion report of a day
  stackreport show --ingestion --name 2018-08-23`,
	PreRunE: readerSetup,
	Run: func(_ *cobra.Command, _ []string) {
		reader, err := newReader(rootCtx, cfg)
		if err != nil {
			contract.LogFatal("Failed to open report store", err)
		}
		defer func() { _ = reader.Store.Close() }()

		freq := cfg.Frequency
		if cfg.Ingestion {
			freq = schema.Daily
		}
		name := cfg.Name
		if name == "" {
			w, err := core.WindowFor(freq, cfg.Today, false)
			if err != nil {
				contract.LogFatal("Failed to resolve report window", err)
			}
			name = w.Name()
		}

		writer := outwriter.NewOutWriter()
		if cfg.Ingestion {
			report, err := reader.IngestionReport(rootCtx, name)
			if err != nil {
				contract.LogFatal("Failed to load ingestion report", err)
			}
			if err := writer.WriteIngestionReport(report, cfg); err != nil {
				contract.LogFatal("Failed to write ingestion report", err)
			}
			return
		}

		doc, err := reader.StackReport(rootCtx, freq, name)
		if err != nil {
			contract.LogFatal("Failed to load stack report", err)
		}
		if err := writer.WriteStackReport(doc, cfg); err != nil {
			contract.LogFatal("Failed to write stack report", err)
		}
	},
}
