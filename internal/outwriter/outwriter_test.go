package outwriter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *schema.ReportDocument {
	doc := schema.NewReportDocument("2018-08-22", "2018-08-22", "2018-08-23T10:00:00")
	doc.StacksSummary.TotalStackRequestsCount = 3
	doc.StacksSummary.TotalAverageResponseTime = "12.5 seconds"
	doc.StacksSummary.UniqueCVEs = schema.FrequencyMap{"CVE-2018-3728": 2}
	doc.StacksSummary.Ecosystems[schema.NPM] = schema.EcosystemSummary{
		StackRequestsCount:                     2,
		UniqueDependenciesWithFrequency:        schema.FrequencyMap{"lodash 4.17.10": 2, "express 4.16.3": 1},
		UniqueUnknownDependenciesWithFrequency: schema.FrequencyMap{},
		UniqueStacksWithFrequency:              schema.FrequencyMap{"express 4.16.3, lodash 4.17.10": 1, "lodash 4.17.10": 1},
		AverageResponseTime:                    "10 seconds",
		Trending: schema.Trending{
			TopStacks: []schema.TrendEntry{{Name: "lodash 4.17.10", Count: 1}},
			TopDeps:   []schema.TrendEntry{{Name: "lodash 4.17.10", Count: 2}},
		},
	}
	doc.StacksSummary.Ecosystems[schema.PyPI] = schema.EcosystemSummary{
		StackRequestsCount:                     1,
		UniqueDependenciesWithFrequency:        schema.FrequencyMap{"flask 1.0.2": 1},
		UniqueUnknownDependenciesWithFrequency: schema.FrequencyMap{"internal-lib 0.1": 1},
		UniqueStacksWithFrequency:              schema.FrequencyMap{"flask 1.0.2": 1},
		AverageResponseTime:                    "15 seconds",
	}
	return doc
}

func sampleIngestion() *schema.IngestionReport {
	r := schema.NewIngestionReport("2018-08-22", "2018-08-22", "2018-08-23T10:00:00")
	acc := 50.0
	r.IngestionSummary.Stats[schema.NPM] = &schema.IngestionStats{
		CorrectLatestVersions:   1,
		IncorrectLatestVersions: 1,
		IngestedInGraph:         2,
		LatestVersionAccuracy:   &acc,
		IngestionAccuracy:       new(float64),
	}
	*r.IngestionSummary.Stats[schema.NPM].IngestionAccuracy = 100
	r.IngestionSummary.Stats[schema.Maven] = &schema.IngestionStats{}
	r.IngestionSummary.MissingLatestNode[schema.NPM] = []schema.PackageVersion{{Package: "lodash", Version: "4.17.11"}}
	return r
}

func outputConfig(t *testing.T, mode schema.OutputMode) (*contract.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out")
	return &contract.Config{Output: mode, OutputFile: path, Width: 120}, path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestWriteStackReportJSON(t *testing.T) {
	cfg, path := outputConfig(t, schema.JSONOut)
	doc := sampleReport()
	require.NoError(t, NewOutWriter().WriteStackReport(doc, cfg))

	var got schema.ReportDocument
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, path)), &got))
	assert.Equal(t, doc.Report, got.Report)
	assert.Equal(t, 3, got.StacksSummary.TotalStackRequestsCount)
	assert.Equal(t, 2, got.StacksSummary.Ecosystems[schema.NPM].UniqueDependenciesWithFrequency["lodash 4.17.10"])
}

func TestWriteStackReportCSV(t *testing.T) {
	cfg, path := outputConfig(t, schema.CSVOut)
	require.NoError(t, NewOutWriter().WriteStackReport(sampleReport(), cfg))

	lines := strings.Split(strings.TrimSpace(readOutput(t, path)), "\n")
	assert.Equal(t, []string{
		"ecosystem,category,key,count",
		`npm,stack,"express 4.16.3, lodash 4.17.10",1`,
		"npm,stack,lodash 4.17.10,1",
		"npm,dependency,express 4.16.3,1",
		"npm,dependency,lodash 4.17.10,2",
		"pypi,stack,flask 1.0.2,1",
		"pypi,dependency,flask 1.0.2,1",
		"pypi,unknown_dependency,internal-lib 0.1,1",
		",cve,CVE-2018-3728,2",
	}, lines)
}

func TestWriteStackReportTable(t *testing.T) {
	cfg, path := outputConfig(t, schema.TextOut)
	doc := sampleReport()
	doc.StacksSummary.CVEReport = &schema.CVEReport{
		GitHubStats: schema.GitHubStats{OpenCount: map[string]int{"2 days": 1}, FalsePositives: 3},
		Ingestion:   schema.CVEIngestion{Ingested: []string{"CVE-2018-1"}, Missed: []string{}},
	}
	require.NoError(t, NewOutWriter().WriteStackReport(doc, cfg))

	out := readOutput(t, path)
	assert.Contains(t, out, "Stack report 2018-08-22 .. 2018-08-22")
	assert.Contains(t, out, "Total stack requests: 3, average response time: 12.5 seconds")
	assert.Contains(t, out, "Unique CVEs: 1, unknown licenses: 0")
	assert.Contains(t, out, "false positives: 3, ingested: 1, missed: 0")
	assert.Contains(t, out, "Trending in npm")
	assert.NotContains(t, out, "Trending in pypi", "ecosystems without trending entries are skipped")
	assert.Less(t, strings.Index(out, "npm"), strings.Index(out, "pypi"), "ecosystems follow report order")
	assert.Contains(t, out, "Generated on 2018-08-23T10:00:00")
}

func TestWriteStackReportTableWithoutCVE(t *testing.T) {
	cfg, path := outputConfig(t, schema.TextOut)
	require.NoError(t, WriteStackReport(schema.NewReportDocument("2018-08-22", "2018-08-22", "x"), cfg))
	assert.Contains(t, readOutput(t, path), "CVE report: not available")
}

func TestWriteIngestionReport(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		cfg, path := outputConfig(t, schema.CSVOut)
		require.NoError(t, NewOutWriter().WriteIngestionReport(sampleIngestion(), cfg))
		lines := strings.Split(strings.TrimSpace(readOutput(t, path)), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "npm,1,1,50.00%,Failing,2,0,100.00%,Healthy", lines[1])
		assert.Equal(t, "maven,0,0,n/a,Unknown,0,0,n/a,Unknown", lines[2])
	})

	t.Run("json", func(t *testing.T) {
		cfg, path := outputConfig(t, schema.JSONOut)
		require.NoError(t, WriteIngestionReport(sampleIngestion(), cfg))
		var got schema.IngestionReport
		require.NoError(t, json.Unmarshal([]byte(readOutput(t, path)), &got))
		require.NotNil(t, got.IngestionSummary.Stats[schema.NPM].LatestVersionAccuracy)
		assert.InDelta(t, 50.0, *got.IngestionSummary.Stats[schema.NPM].LatestVersionAccuracy, 1e-9)
	})

	t.Run("table", func(t *testing.T) {
		cfg, path := outputConfig(t, schema.TextOut)
		require.NoError(t, WriteIngestionReport(sampleIngestion(), cfg))
		out := readOutput(t, path)
		assert.Contains(t, out, "Ingestion report 2018-08-22 .. 2018-08-22")
		assert.Contains(t, out, "Failing")
		assert.Contains(t, out, "Latest versions missing from graph: 1, versions not ingested: 0")
	})
}

func TestGetMaxTableKeyWidth(t *testing.T) {
	tests := []struct {
		name  string
		width int
		want  int
	}{
		{"narrow terminal", 40, minKeyWidth},
		{"medium terminal", 100, 50},
		{"wide terminal", 300, maxKeyWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetMaxTableKeyWidth(&contract.Config{Width: tt.width}, 30))
		})
	}
}

func TestOrderedEcosystems(t *testing.T) {
	m := map[schema.Ecosystem]int{schema.Maven: 1, "cargo": 1, schema.NPM: 1, "alpine": 1}
	assert.Equal(t, []schema.Ecosystem{schema.NPM, schema.Maven, "alpine", "cargo"}, orderedEcosystems(m))
}
