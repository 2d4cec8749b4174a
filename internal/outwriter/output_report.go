package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Report-level CSV categories that have no ecosystem.
const (
	categoryCVE            = "cve"
	categoryUnknownLicense = "unknown_license"
)

// WriteStackReport outputs a stack report, dispatching on the configured output format.
func WriteStackReport(doc *schema.ReportDocument, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, doc)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStackReportCSV(w, doc)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStackReportTable(w, doc, cfg)
		}, "Wrote table")
	}
	return nil
}

// writeStackReportTable writes the per-ecosystem summary followed by the trending lists.
func writeStackReportTable(w io.Writer, doc *schema.ReportDocument, cfg *contract.Config) error {
	header, accent := colorizers(cfg.UseColors)
	summary := doc.StacksSummary

	if _, err := fmt.Fprintln(w, header(fmt.Sprintf("Stack report %s .. %s", doc.Report.From, doc.Report.To))); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Ecosystem", "Requests", "Unique Stacks", "Unique Deps", "Unknown Deps", "Avg Response"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	for _, eco := range orderedEcosystems(summary.Ecosystems) {
		s := summary.Ecosystems[eco]
		data = append(data, []string{
			string(eco),
			strconv.Itoa(s.StackRequestsCount),
			strconv.Itoa(len(s.UniqueStacksWithFrequency)),
			strconv.Itoa(len(s.UniqueDependenciesWithFrequency)),
			strconv.Itoa(len(s.UniqueUnknownDependenciesWithFrequency)),
			s.AverageResponseTime,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Total stack requests: %d, average response time: %s\n",
		summary.TotalStackRequestsCount, summary.TotalAverageResponseTime); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Unique CVEs: %d, unknown licenses: %d\n",
		len(summary.UniqueCVEs), len(summary.UniqueUnknownLicensesWithFrequency)); err != nil {
		return err
	}
	if err := writeCVEReportLine(w, summary.CVEReport); err != nil {
		return err
	}

	keyWidth := GetMaxTableKeyWidth(cfg, 30)
	for _, eco := range orderedEcosystems(summary.Ecosystems) {
		trending := summary.Ecosystems[eco].Trending
		if len(trending.TopStacks) == 0 && len(trending.TopDeps) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, accent("Trending in "+string(eco))); err != nil {
			return err
		}
		if err := writeTrendingTable(w, trending, keyWidth); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Generated on %s\n", doc.Report.GeneratedOn)
	return err
}

// writeTrendingTable lists top stacks and then top dependencies of one ecosystem.
func writeTrendingTable(w io.Writer, trending schema.Trending, keyWidth int) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Rank", "Kind", "Name", "Count"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, e := range trending.TopStacks {
		data = append(data, []string{strconv.Itoa(i + 1), schema.KindStack, contract.TruncatePath(e.Name, keyWidth), strconv.Itoa(e.Count)})
	}
	for i, e := range trending.TopDeps {
		data = append(data, []string{strconv.Itoa(i + 1), schema.KindDependency, contract.TruncatePath(e.Name, keyWidth), strconv.Itoa(e.Count)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeCVEReportLine summarizes the CVE database activity, if it was collected.
func writeCVEReportLine(w io.Writer, r *schema.CVEReport) error {
	if r == nil {
		_, err := fmt.Fprintln(w, "CVE report: not available")
		return err
	}
	var open []string
	for _, window := range slices.Sorted(maps.Keys(r.GitHubStats.OpenCount)) {
		open = append(open, fmt.Sprintf("%s=%d", window, r.GitHubStats.OpenCount[window]))
	}
	_, err := fmt.Fprintf(w, "CVE report: open PRs %v, false positives: %d, ingested: %d, missed: %d\n",
		open, r.GitHubStats.FalsePositives, len(r.Ingestion.Ingested), len(r.Ingestion.Missed))
	return err
}

// writeStackReportCSV flattens every frequency map of the report into one row per key.
func writeStackReportCSV(w io.Writer, doc *schema.ReportDocument) error {
	header := []string{"ecosystem", "category", "key", "count"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		summary := doc.StacksSummary
		for _, eco := range orderedEcosystems(summary.Ecosystems) {
			s := summary.Ecosystems[eco]
			for _, part := range []struct {
				category string
				freq     schema.FrequencyMap
			}{
				{schema.KindStack, s.UniqueStacksWithFrequency},
				{schema.KindDependency, s.UniqueDependenciesWithFrequency},
				{schema.KindUnknown, s.UniqueUnknownDependenciesWithFrequency},
			} {
				if err := writeFrequencyRows(cw, string(eco), part.category, part.freq); err != nil {
					return err
				}
			}
		}
		if err := writeFrequencyRows(cw, "", categoryCVE, summary.UniqueCVEs); err != nil {
			return err
		}
		return writeFrequencyRows(cw, "", categoryUnknownLicense, summary.UniqueUnknownLicensesWithFrequency)
	})
}

func writeFrequencyRows(cw *csv.Writer, eco, category string, freq schema.FrequencyMap) error {
	for _, key := range slices.Sorted(maps.Keys(freq)) {
		if err := cw.Write([]string{eco, category, key, strconv.Itoa(freq[key])}); err != nil {
			return err
		}
	}
	return nil
}

// orderedEcosystems returns the supported ecosystems present in m in report order,
// followed by any others sorted by name.
func orderedEcosystems[V any](m map[schema.Ecosystem]V) []schema.Ecosystem {
	var out []schema.Ecosystem
	for _, eco := range schema.SupportedEcosystems {
		if _, ok := m[eco]; ok {
			out = append(out, eco)
		}
	}
	for _, eco := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(schema.SupportedEcosystems, eco) {
			out = append(out, eco)
		}
	}
	return out
}
