package core

import (
	"context"
	"errors"
	"time"

	"github.com/huangsam/stackreport/core/agg"
	"github.com/huangsam/stackreport/schema"
)

// RunOptions selects the cadence and date of a report run.
type RunOptions struct {
	Frequency schema.Frequency
	Today     time.Time
	Retrain   bool
}

// RunSummary describes the outcome of a report run.
type RunSummary struct {
	RunID     string
	Window    Window
	Status    schema.RunStatus
	Report    *StackReport
	Ingestion *schema.IngestionReport
	Collated  schema.CollatedState
	Retrained []schema.Ecosystem
	Duration  time.Duration
}

// StackCount returns the number of stack requests in the run's report.
func (s *RunSummary) StackCount() int {
	if s == nil || s.Report == nil {
		return 0
	}
	return s.Report.Document.StacksSummary.TotalStackRequestsCount
}

// Run executes one scheduled report run.
//
// Daily runs also build the ingestion and sentry reports and, once every report is
// written, trigger ingestion of latest versions missing from the graph. Weekly and
// monthly runs collate their stacks into cumulative state; weekly runs with Retrain
// export training data afterwards. Only a failure of the primary stack data source
// fails the run; an empty window is reported as RunNoData.
func (a *Assembler) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	w, err := WindowFor(opts.Frequency, opts.Today, opts.Retrain)
	if err != nil {
		return nil, err
	}

	start := a.now()
	summary := &RunSummary{Window: w, Status: schema.RunNoData}
	summary.RunID = a.beginRun(w, start)
	ctx = withRunID(ctx, summary.RunID)
	logger := a.log(ctx)
	logger.Info("Report run started", "frequency", w.Frequency, "from", w.Start, "to", w.End)

	if w.Frequency == schema.Daily {
		ing, err := a.GenerateIngestionReport(ctx, w)
		if err != nil {
			logger.Error("Ingestion report failed", "err", err)
		}
		summary.Ingestion = ing

		if _, err := a.GenerateSentryReport(ctx, w); err != nil {
			logger.Error("Sentry report failed", "err", err)
		}
	}

	report, ok, err := a.GenerateStackReport(ctx, w)
	switch {
	case errors.Is(err, agg.ErrUnsupportedWorker):
		logger.Error("No report produced", "err", err)
	case err != nil:
		summary.Status = schema.RunFailed
		a.finishRun(ctx, summary, start)
		return summary, err
	case ok:
		summary.Status = schema.RunSucceeded
		summary.Report = report
		a.recordFrequencies(ctx, summary.RunID, report.Document)
		a.collate(ctx, summary, opts.Retrain)
	}

	if summary.Ingestion != nil {
		a.TriggerMissingIngestion(ctx, summary.Ingestion.IngestionSummary.MissingLatestNode)
	}

	a.finishRun(ctx, summary, start)
	return summary, nil
}

func (a *Assembler) collate(ctx context.Context, summary *RunSummary, retrain bool) {
	w := summary.Window
	if a.Collator == nil || w.Frequency == schema.Daily {
		return
	}
	// Weekly state is folded only by the retraining run, once per week.
	if w.Frequency == schema.Weekly && !retrain {
		return
	}
	logger := a.log(ctx)

	state, err := a.Collator.Collate(ctx, summary.Report.UniqueStacks, w.Frequency)
	if err != nil {
		logger.Error("Collation failed", "frequency", w.Frequency, "err", err)
		a.Metrics.IntegrationFailed("collation")
		return
	}
	summary.Collated = state

	if w.Frequency == schema.Weekly && a.Exporter != nil {
		summary.Retrained = a.Exporter.Export(ctx, state, w.Today.Format(schema.DateLayout))
	}
}

func (a *Assembler) beginRun(w Window, start time.Time) string {
	if a.Runs == nil {
		return ""
	}
	id, err := a.Runs.BeginRun(w.Frequency, w.Start, w.End, start)
	if err != nil {
		a.logger().Warn("Failed to begin run tracking", "err", err)
		return ""
	}
	return id
}

func (a *Assembler) finishRun(ctx context.Context, summary *RunSummary, start time.Time) {
	end := a.now()
	summary.Duration = end.Sub(start)
	a.Metrics.ObserveRun(string(summary.Window.Frequency), string(summary.Status), summary.Duration)

	if a.Runs != nil && summary.RunID != "" {
		if err := a.Runs.EndRun(summary.RunID, end, summary.StackCount(), summary.Status); err != nil {
			a.log(ctx).Warn("Failed to end run tracking", "err", err)
		}
	}
	a.log(ctx).Info("Report run finished", "status", summary.Status, "stacks", summary.StackCount(), "duration", summary.Duration.Round(time.Millisecond))
}

func (a *Assembler) recordFrequencies(ctx context.Context, runID string, doc *schema.ReportDocument) {
	if a.Runs == nil || runID == "" {
		return
	}
	for _, eco := range schema.SupportedEcosystems {
		es := doc.StacksSummary.Ecosystems[eco]
		rows := []struct {
			kind string
			freq schema.FrequencyMap
		}{
			{schema.KindStack, es.UniqueStacksWithFrequency},
			{schema.KindDependency, es.UniqueDependenciesWithFrequency},
			{schema.KindUnknown, es.UniqueUnknownDependenciesWithFrequency},
		}
		for _, r := range rows {
			if len(r.freq) == 0 {
				continue
			}
			if err := a.Runs.RecordFrequencies(runID, eco, r.kind, r.freq); err != nil {
				a.log(ctx).Warn("Failed to record frequencies", "ecosystem", eco, "kind", r.kind, "err", err)
			}
		}
	}
}
