package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteIngestionReport outputs an ingestion report, dispatching on the configured output format.
func WriteIngestionReport(report *schema.IngestionReport, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIngestionCSV(w, report)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIngestionTable(w, report, cfg)
		}, "Wrote table")
	}
	return nil
}

// writeIngestionTable writes one accuracy row per ecosystem.
func writeIngestionTable(w io.Writer, report *schema.IngestionReport, cfg *contract.Config) error {
	header, _ := colorizers(cfg.UseColors)
	if _, err := fmt.Fprintln(w, header(fmt.Sprintf("Ingestion report %s .. %s", report.Report.From, report.Report.To))); err != nil {
		return err
	}

	label := contract.GetPlainLabel
	if cfg.UseColors {
		label = contract.GetColorLabel
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Ecosystem", "Correct", "Incorrect", "Latest Accuracy", "Label", "In Graph", "Not In Graph", "Ingestion Accuracy", "Label"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	summary := report.IngestionSummary
	var data [][]string
	missing, unknown := 0, 0
	for _, eco := range orderedEcosystems(summary.Stats) {
		s := summary.Stats[eco]
		data = append(data, []string{
			string(eco),
			strconv.Itoa(s.CorrectLatestVersions),
			strconv.Itoa(s.IncorrectLatestVersions),
			formatAccuracy(s.LatestVersionAccuracy),
			label(s.LatestVersionAccuracy),
			strconv.Itoa(s.IngestedInGraph),
			strconv.Itoa(s.NotIngestedInGraph),
			formatAccuracy(s.IngestionAccuracy),
			label(s.IngestionAccuracy),
		})
		missing += len(summary.MissingLatestNode[eco])
		unknown += len(summary.UnknownDeps[eco])
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Latest versions missing from graph: %d, versions not ingested: %d\n", missing, unknown)
	return err
}

// writeIngestionCSV writes the per-ecosystem counters with plain labels.
func writeIngestionCSV(w io.Writer, report *schema.IngestionReport) error {
	header := []string{
		"ecosystem",
		"correct_latest_versions",
		"incorrect_latest_versions",
		"latest_version_accuracy",
		"latest_version_label",
		"ingested_in_graph",
		"not_ingested_in_graph",
		"ingestion_accuracy",
		"ingestion_label",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		stats := report.IngestionSummary.Stats
		for _, eco := range orderedEcosystems(stats) {
			s := stats[eco]
			rec := []string{
				string(eco),
				strconv.Itoa(s.CorrectLatestVersions),
				strconv.Itoa(s.IncorrectLatestVersions),
				formatAccuracy(s.LatestVersionAccuracy),
				contract.GetPlainLabel(s.LatestVersionAccuracy),
				strconv.Itoa(s.IngestedInGraph),
				strconv.Itoa(s.NotIngestedInGraph),
				formatAccuracy(s.IngestionAccuracy),
				contract.GetPlainLabel(s.IngestionAccuracy),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
