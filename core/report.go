package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/core/agg"
	"github.com/huangsam/stackreport/core/algo"
	"github.com/huangsam/stackreport/core/collate"
	"github.com/huangsam/stackreport/core/ingest"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/schema"
)

// Assembler wires the aggregation, collation and reconciliation stages into report runs.
// Optional collaborators (CVE, Sentry, Ingest, Collator, Exporter, Runs) may be nil.
type Assembler struct {
	Queries    contract.ReportQueries
	Store      contract.ObjectStore
	Graph      contract.GraphLookup
	CVE        contract.CVEReporter
	Sentry     contract.SentryReporter
	Ingest     contract.IngestTrigger
	Reconciler *ingest.Reconciler
	Collator   *collate.Engine
	Exporter   *collate.Exporter
	Runs       contract.RunStore

	Kind             schema.WorkerKind
	Bucket           string
	Scope            string
	DeploymentPrefix string
	TopStacks        int
	TopDeps          int

	Logger  *log.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// StackReport is a persisted stack report together with the data later stages need.
type StackReport struct {
	Name         string
	Key          string
	Document     *schema.ReportDocument
	UniqueStacks map[schema.Ecosystem]schema.FrequencyMap
}

// GenerateStackReport aggregates the worker results of a window and persists the report.
// It returns (nil, false, nil) when the window holds no stack analyses.
func (a *Assembler) GenerateStackReport(ctx context.Context, w Window) (*StackReport, bool, error) {
	logger := a.log(ctx)
	if _, err := contract.ParseDate(w.Start); err != nil {
		return nil, false, err
	}
	if _, err := contract.ParseDate(w.End); err != nil {
		return nil, false, err
	}

	aggregator, err := agg.NewAggregator(a.Kind, agg.Options{
		TopStacks: a.TopStacks,
		TopDeps:   a.TopDeps,
		Logger:    logger,
		Metrics:   a.Metrics,
	})
	if err != nil {
		return nil, false, err
	}

	ids, err := a.Queries.StackAnalysisIDs(ctx, w.Start, w.End)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve stack analysis ids: %w", err)
	}
	if len(ids) == 0 {
		logger.Info("No stack analyses found", "from", w.Start, "to", w.End)
		return nil, false, nil
	}

	rows, err := a.Queries.WorkerResults(ctx, a.Kind, ids)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve worker results: %w", err)
	}
	if len(rows) == 0 {
		logger.Warn("No worker results found for stack analyses", "worker", a.Kind, "ids", len(ids))
		return nil, false, nil
	}

	result := aggregator.Summarize(aggregator.Aggregate(rows))

	doc := schema.NewReportDocument(w.Start, w.End, a.now().Format(schema.GeneratedOnLayout))
	doc.Report.ReportVersion = a.scope()
	doc.StacksSummary = result.Summary
	doc.StacksDetails = result.Details

	a.attachPreviouslyUnknown(ctx, w, doc)
	doc.StacksSummary.CVEReport = a.cveReport(ctx, w.Start)

	report := &StackReport{
		Name:         w.Name(),
		Key:          schema.ReportKey(a.scope(), w.Frequency, w.Name()),
		Document:     doc,
		UniqueStacks: result.UniqueStacks,
	}
	if err := a.Store.PutJSON(ctx, a.Bucket, report.Key, doc); err != nil {
		return nil, false, fmt.Errorf("store report %s: %w", report.Key, err)
	}
	logger.Info("Saved stack report", "key", report.Key, "stacks", doc.StacksSummary.TotalStackRequestsCount)
	return report, true, nil
}

// attachPreviouslyUnknown reports which dependencies unknown in yesterday's daily report
// are now present in the graph.
func (a *Assembler) attachPreviouslyUnknown(ctx context.Context, w Window, doc *schema.ReportDocument) {
	if a.Graph == nil {
		return
	}
	logger := a.log(ctx)
	key := schema.ReportKey(a.scope(), schema.Daily, w.Yesterday())

	var past schema.ReportDocument
	found, err := a.Store.GetJSON(ctx, a.Bucket, key, &past)
	if err != nil {
		logger.Error("Unable to read previous daily report", "key", key, "err", err)
		a.Metrics.IntegrationFailed("object_store")
		return
	}
	if !found {
		logger.Info("No previous daily report", "key", key)
		return
	}

	var epvs []schema.EPV
	for _, eco := range schema.SupportedEcosystems {
		unknown := past.StacksSummary.Ecosystems[eco].UniqueUnknownDependenciesWithFrequency
		for _, k := range slices.Sorted(maps.Keys(unknown)) {
			dep, ok := algo.SplitDependencyKey(k)
			if !ok {
				logger.Warn("Incorrect name version pair in unknown list", "ecosystem", eco, "key", k)
				continue
			}
			epvs = append(epvs, schema.EPV{Ecosystem: eco, Name: dep.Name, Version: dep.Version})
		}
	}
	if len(epvs) == 0 {
		return
	}

	present := a.Graph.PresentVersions(ctx, epvs)
	for _, epv := range epvs {
		if !present[epv] {
			continue
		}
		summary := doc.StacksSummary.Ecosystems[epv.Ecosystem]
		summary.PreviouslyUnknownDependencies = append(summary.PreviouslyUnknownDependencies,
			schema.Dependency{Name: epv.Name, Version: epv.Version})
		doc.StacksSummary.Ecosystems[epv.Ecosystem] = summary
	}
}

func (a *Assembler) cveReport(ctx context.Context, updatedOn string) *schema.CVEReport {
	if a.CVE == nil {
		return nil
	}
	report, err := a.CVE.Report(ctx, updatedOn)
	if err != nil {
		a.log(ctx).Error("Unable to build CVE report", "updated_on", updatedOn, "err", err)
		a.Metrics.IntegrationFailed("cve")
		return nil
	}
	return report
}

// GenerateIngestionReport reconciles the EPVs analysed in a window and persists the result.
func (a *Assembler) GenerateIngestionReport(ctx context.Context, w Window) (*schema.IngestionReport, error) {
	if a.Reconciler == nil {
		return nil, nil
	}
	logger := a.log(ctx)
	progress := logx.NewProgress(logger)

	epvs, err := a.Queries.IngestionEPVs(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("retrieve ingestion epvs: %w", err)
	}

	header := schema.ReportHeader{From: w.Start, To: w.End, GeneratedOn: a.now().Format(schema.GeneratedOnLayout)}
	report := a.Reconciler.Reconcile(ctx, header, epvs)

	key := schema.IngestionReportKey(w.Name())
	if err := a.Store.PutJSON(ctx, a.Bucket, key, report); err != nil {
		return report, fmt.Errorf("store ingestion report %s: %w", key, err)
	}
	progress.Done("Generated ingestion report " + key)
	return report, nil
}

// GenerateSentryReport builds and persists the daily error report.
func (a *Assembler) GenerateSentryReport(ctx context.Context, w Window) (*schema.SentryReport, error) {
	if a.Sentry == nil {
		return nil, nil
	}
	report, err := a.Sentry.Report(ctx)
	if err != nil {
		a.Metrics.IntegrationFailed("sentry")
		return nil, fmt.Errorf("build sentry report: %w", err)
	}
	if len(report.ErrorReport) == 0 {
		a.log(ctx).Warn("No Sentry error logs found in last 24 hours")
	}

	key := schema.SentryReportKey(a.DeploymentPrefix, w.Today.Format(schema.DateLayout))
	if err := a.Store.PutJSON(ctx, a.Bucket, key, report); err != nil {
		return report, fmt.Errorf("store sentry report %s: %w", key, err)
	}
	a.log(ctx).Info("Saved sentry report", "key", key, "servers", len(report.ErrorReport))
	return report, nil
}

// TriggerMissingIngestion asks the ingestion service to ingest latest versions missing from the graph.
// Failures are logged per ecosystem.
func (a *Assembler) TriggerMissingIngestion(ctx context.Context, missing map[schema.Ecosystem][]schema.PackageVersion) {
	if a.Ingest == nil {
		return
	}
	logger := a.log(ctx)
	for _, eco := range slices.Sorted(maps.Keys(missing)) {
		pkgs := missing[eco]
		if len(pkgs) == 0 {
			continue
		}
		logger.Info("Triggering ingestion of missing latest versions", "ecosystem", eco, "count", len(pkgs))
		if err := a.Ingest.IngestVersions(ctx, eco, pkgs); err != nil {
			logger.Error("Ingestion trigger failed", "ecosystem", eco, "err", err)
			a.Metrics.IntegrationFailed("ingest")
		}
	}
}

// Cleanup removes relational rows past their retention. A failure on one table
// does not stop the other.
func (a *Assembler) Cleanup(ctx context.Context, keepMetaDays, keepWorkerResultDays int) schema.CleanupResult {
	logger := a.log(ctx)
	now := a.now()
	var res schema.CleanupResult

	n, err := a.Queries.CleanupTaskMeta(ctx, now.AddDate(0, 0, -keepMetaDays))
	if err != nil {
		logger.Error("Cleanup of task metadata failed", "err", err)
	} else {
		res.TaskMetaDeleted = n
		logger.Info("Cleaned up task metadata", "deleted", n, "keep_days", keepMetaDays)
	}

	n, err = a.Queries.CleanupWorkerResults(ctx, now.AddDate(0, 0, -keepWorkerResultDays))
	if err != nil {
		logger.Error("Cleanup of worker results failed", "err", err)
	} else {
		res.WorkerResultDeleted = n
		logger.Info("Cleaned up worker results", "deleted", n, "keep_days", keepWorkerResultDays)
	}
	return res
}

func (a *Assembler) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return logx.Discard()
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Assembler) scope() string {
	if a.Scope != "" {
		return a.Scope
	}
	return schema.DefaultScope
}
