package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var header = schema.ReportHeader{From: "2018-08-22", To: "2018-08-23", GeneratedOn: "2018-08-23T00:00:00"}

type fixture struct {
	graph     *contract.MockGraphLookup
	resolver  *contract.MockVersionResolver
	rectifier *contract.MockRectifier
	metrics   *metrics.Metrics
	rec       *Reconciler
}

func newFixture() *fixture {
	f := &fixture{
		graph:     &contract.MockGraphLookup{},
		resolver:  &contract.MockVersionResolver{},
		rectifier: &contract.MockRectifier{},
		metrics:   metrics.New(),
	}
	f.rec = &Reconciler{
		Graph:     f.graph,
		Resolver:  f.resolver,
		Rectifier: f.rectifier,
		Logger:    logx.Discard(),
		Metrics:   f.metrics,
	}
	return f
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name               string
		correct, incorrect int
		want               *float64
	}{
		{"no denominator", 0, 0, nil},
		{"all correct", 4, 0, ptr(100)},
		{"all incorrect", 0, 3, ptr(0)},
		{"one third", 1, 2, ptr(33.33)},
		{"two thirds", 2, 1, ptr(66.67)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Accuracy(tt.correct, tt.incorrect)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestReconcileCorrectLatestVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	epv := schema.EPV{Ecosystem: schema.Maven, Name: "pkg", Version: "1.0"}

	f.graph.On("KnownLatestVersions", ctx, []schema.PackageKey{epv.Package()}).
		Return(map[schema.PackageKey]schema.LatestVersionInfo{epv.Package(): {Known: "1.0"}})
	f.resolver.On("LatestVersion", ctx, schema.Maven, "pkg").Return("1.0", nil)
	f.graph.On("PresentVersions", ctx, []schema.EPV{epv}).Return(map[schema.EPV]bool{epv: true})

	report := f.rec.Reconcile(ctx, header, []schema.EPV{epv})

	stats := report.IngestionSummary.Stats[schema.Maven]
	assert.Equal(t, 1, stats.CorrectLatestVersions)
	assert.Equal(t, 0, stats.IncorrectLatestVersions)
	assert.Equal(t, 1, stats.IngestedInGraph)
	require.NotNil(t, stats.LatestVersionAccuracy)
	assert.InDelta(t, 100.0, *stats.LatestVersionAccuracy, 1e-9)
	require.NotNil(t, stats.IngestionAccuracy)
	assert.InDelta(t, 100.0, *stats.IngestionAccuracy, 1e-9)

	assert.Empty(t, report.IngestionSummary.IncorrectLatestVersion[schema.Maven])
	assert.Empty(t, report.IngestionSummary.MissingLatestNode)

	detail := report.IngestionDetails[schema.Maven]["pkg"]
	assert.Equal(t, "1.0", detail.KnownLatestVersion)
	assert.Equal(t, "1.0", detail.ActualLatestVersion)
	require.NotNil(t, detail.LatestNodeInGraph)
	assert.True(t, *detail.LatestNodeInGraph)
	require.NotNil(t, detail.Versions["1.0"].SyncedToGraph)
	assert.True(t, *detail.Versions["1.0"].SyncedToGraph)

	f.rectifier.AssertNotCalled(t, "RectifyLatestVersions", mock.Anything, mock.Anything, mock.Anything)
	f.graph.AssertExpectations(t)
}

func TestReconcileDeduplicatesIncorrectLatestVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	v40 := schema.EPV{Ecosystem: schema.NPM, Name: "lodash", Version: "4.0"}
	v41 := schema.EPV{Ecosystem: schema.NPM, Name: "lodash", Version: "4.1"}
	latest := schema.EPV{Ecosystem: schema.NPM, Name: "lodash", Version: "4.17"}
	wantEntries := []schema.IncorrectLatestVersion{
		{Package: "lodash", ActualLatestVersion: "4.17", KnownLatestVersion: "4.1"},
	}

	f.graph.On("KnownLatestVersions", ctx, []schema.PackageKey{v40.Package()}).
		Return(map[schema.PackageKey]schema.LatestVersionInfo{v40.Package(): {Known: "4.1", NonCVEVersion: "4.0"}})
	f.resolver.On("LatestVersion", ctx, schema.NPM, "lodash").Return("4.17", nil)
	f.graph.On("PresentVersions", ctx, []schema.EPV{v40, v41}).Return(map[schema.EPV]bool{v40: true})
	f.graph.On("PresentVersions", ctx, []schema.EPV{latest}).Return(map[schema.EPV]bool{})
	f.rectifier.On("RectifyLatestVersions", ctx, schema.NPM, wantEntries).Return(nil)

	input := []schema.EPV{v40, v41, v40}
	first := f.rec.Reconcile(ctx, header, input)
	second := f.rec.Reconcile(ctx, header, input)

	for _, report := range []*schema.IngestionReport{first, second} {
		summary := report.IngestionSummary
		assert.Equal(t, wantEntries, summary.IncorrectLatestVersion[schema.NPM])

		stats := summary.Stats[schema.NPM]
		assert.Equal(t, 1, stats.IncorrectLatestVersions)
		assert.Equal(t, 0, stats.CorrectLatestVersions)
		assert.Equal(t, 1, stats.IngestedInGraph)
		assert.Equal(t, 1, stats.NotIngestedInGraph)
		assert.InDelta(t, 0.0, *stats.LatestVersionAccuracy, 1e-9)
		assert.InDelta(t, 50.0, *stats.IngestionAccuracy, 1e-9)

		assert.Equal(t, []schema.EPV{v41}, summary.UnknownDeps[schema.NPM])
		assert.Equal(t, []schema.PackageVersion{{Package: "lodash", Version: "4.17"}}, summary.MissingLatestNode[schema.NPM])
		assert.Equal(t, "4.0", report.IngestionDetails[schema.NPM]["lodash"].NonCVEVersion)
	}
	f.rectifier.AssertNumberOfCalls(t, "RectifyLatestVersions", 2)
}

func TestReconcileExcludesPrivatePackages(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	epv := schema.EPV{Ecosystem: schema.PyPI, Name: "internal-tool", Version: "0.1"}

	f.graph.On("KnownLatestVersions", ctx, []schema.PackageKey{epv.Package()}).
		Return(map[schema.PackageKey]schema.LatestVersionInfo{})
	f.resolver.On("LatestVersion", ctx, schema.PyPI, "internal-tool").Return("", nil)
	f.graph.On("PresentVersions", ctx, []schema.EPV{epv}).Return(map[schema.EPV]bool{})

	report := f.rec.Reconcile(ctx, header, []schema.EPV{epv})

	stats := report.IngestionSummary.Stats[schema.PyPI]
	assert.Equal(t, schema.IngestionStats{}, *stats)
	assert.Nil(t, stats.LatestVersionAccuracy)
	assert.Nil(t, stats.IngestionAccuracy)
	assert.Empty(t, report.IngestionSummary.UnknownDeps[schema.PyPI])
	assert.True(t, report.IngestionDetails[schema.PyPI]["internal-tool"].PrivatePackage)

	f.graph.AssertNumberOfCalls(t, "PresentVersions", 1)
	f.rectifier.AssertNotCalled(t, "RectifyLatestVersions", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileRectifyFailureDoesNotStopOtherEcosystems(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := schema.EPV{Ecosystem: schema.Maven, Name: "a", Version: "1"}
	b := schema.EPV{Ecosystem: schema.NPM, Name: "b", Version: "1"}

	f.graph.On("KnownLatestVersions", ctx, []schema.PackageKey{a.Package(), b.Package()}).
		Return(map[schema.PackageKey]schema.LatestVersionInfo{
			a.Package(): {Known: "1"},
			b.Package(): {Known: "1"},
		})
	f.resolver.On("LatestVersion", ctx, mock.Anything, mock.Anything).Return("2", nil)
	f.graph.On("PresentVersions", ctx, mock.Anything).Return(map[schema.EPV]bool{})
	f.rectifier.On("RectifyLatestVersions", ctx, schema.Maven, mock.Anything).Return(errors.New("503"))
	f.rectifier.On("RectifyLatestVersions", ctx, schema.NPM, mock.Anything).Return(nil)

	report := f.rec.Reconcile(ctx, header, []schema.EPV{a, b})

	f.rectifier.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RectifyCalls.WithLabelValues("maven", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RectifyCalls.WithLabelValues("npm", "ok")))
	assert.Len(t, report.IngestionSummary.MissingLatestNode[schema.Maven], 1)
	assert.Len(t, report.IngestionSummary.MissingLatestNode[schema.NPM], 1)
}

func TestReconcileResolverFailureSkipsPackage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	epv := schema.EPV{Ecosystem: schema.Golang, Name: "github.com/x/y", Version: "v1.0.0"}

	f.graph.On("KnownLatestVersions", ctx, mock.Anything).Return(map[schema.PackageKey]schema.LatestVersionInfo{})
	f.resolver.On("LatestVersion", ctx, schema.Golang, "github.com/x/y").Return("", errors.New("timeout"))
	f.graph.On("PresentVersions", ctx, mock.Anything).Return(map[schema.EPV]bool{epv: true})

	report := f.rec.Reconcile(ctx, header, []schema.EPV{epv})

	detail := report.IngestionDetails[schema.Golang]["github.com/x/y"]
	assert.False(t, detail.PrivatePackage)
	assert.Nil(t, detail.Versions["v1.0.0"].SyncedToGraph)
	assert.Equal(t, schema.IngestionStats{}, *report.IngestionSummary.Stats[schema.Golang])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IntegrationFailures.WithLabelValues("registry")))
}

func TestReconcileEmpty(t *testing.T) {
	f := newFixture()
	report := f.rec.Reconcile(context.Background(), header, nil)

	assert.Len(t, report.IngestionSummary.Stats, len(schema.SupportedEcosystems))
	assert.Empty(t, report.IngestionDetails)
	f.graph.AssertNotCalled(t, "KnownLatestVersions", mock.Anything, mock.Anything)
}

func ptr(v float64) *float64 { return &v }
