// Package agg has aggregation logic for stack analysis results.
package agg

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/core/algo"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/schema"
)

// ErrUnsupportedWorker is matched by every UnsupportedWorkerError.
var ErrUnsupportedWorker = errors.New("unsupported worker type")

// UnsupportedWorkerError is returned when no decoding strategy exists for a worker kind.
type UnsupportedWorkerError struct {
	Kind schema.WorkerKind
}

func (e *UnsupportedWorkerError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedWorker, string(e.Kind))
}

func (e *UnsupportedWorkerError) Unwrap() error { return ErrUnsupportedWorker }

// Skip reasons reported to metrics.
const (
	skipEmptyStack  = "empty_stack"
	skipMalformed   = "malformed"
	skipUnsupported = "unsupported_ecosystem"
)

// Options tunes the aggregator.
type Options struct {
	TopStacks int
	TopDeps   int
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// Aggregator builds per-ecosystem statistics from the results of one worker kind.
type Aggregator struct {
	kind    schema.WorkerKind
	decoder Decoder
	opts    Options
}

// NewAggregator returns an aggregator for kind, or an *UnsupportedWorkerError.
func NewAggregator(kind schema.WorkerKind, opts Options) (*Aggregator, error) {
	dec, err := DecoderFor(kind)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if opts.TopStacks <= 0 {
		opts.TopStacks = 3
	}
	if opts.TopDeps <= 0 {
		opts.TopDeps = 5
	}
	return &Aggregator{kind: kind, decoder: dec, opts: opts}, nil
}

// Kind returns the worker kind this aggregator decodes.
func (a *Aggregator) Kind() schema.WorkerKind { return a.kind }

// Aggregate decodes and accumulates a batch of worker results in one pass.
// Records that cannot be used are logged and skipped; the batch always completes.
func (a *Aggregator) Aggregate(rows []json.RawMessage) Accumulator {
	acc := newAccumulator()
	for i, row := range rows {
		rec, err := a.decoder.Decode(row)
		if err != nil {
			a.skip(i, skipMalformed, err)
			continue
		}
		if len(rec.Dependencies) == 0 {
			a.opts.Logger.Debug("Skipping stack without analyzed dependencies", "index", i)
			a.opts.Metrics.SkipRecord(skipEmptyStack)
			continue
		}
		if _, ok := schema.ValidEcosystems[rec.Ecosystem]; !ok {
			a.skip(i, skipUnsupported, fmt.Errorf("ecosystem %q", rec.Ecosystem))
			continue
		}
		rt, err := ResponseTimeMillis(rec.StartedAt, rec.EndedAt)
		if err != nil {
			a.skip(i, skipMalformed, err)
			continue
		}
		acc = acc.add(rec, rt)
	}
	a.opts.Logger.Info("Aggregated stack records", "worker", a.kind, "records", len(rows), "stacks", acc.TotalRequests)
	return acc
}

func (a *Aggregator) skip(i int, reason string, err error) {
	a.opts.Logger.Warn("Skipping stack record", "index", i, "reason", reason, "err", err)
	a.opts.Metrics.SkipRecord(reason)
}

// Result is the outcome of summarizing an accumulator.
type Result struct {
	Summary      schema.StacksSummary
	Details      []schema.StackDetail
	UniqueStacks map[schema.Ecosystem]schema.FrequencyMap
}

// Summarize derives the report summary from an accumulator.
// Every supported ecosystem is present in the result, with zero values when it had no requests.
func (a *Aggregator) Summarize(acc Accumulator) Result {
	licenses := a.licenseNames(acc.UnknownLicenses)

	res := Result{
		Summary: schema.StacksSummary{
			TotalStackRequestsCount:            acc.TotalRequests,
			UniqueUnknownLicensesWithFrequency: algo.CountKeys(a.opts.Logger, licenses),
			UniqueCVEs:                         algo.CountStrings(acc.CVEKeys),
			TotalAverageResponseTime:           FormatAverage(acc.TotalResponseTime, len(acc.Details)),
			Ecosystems:                         make(map[schema.Ecosystem]schema.EcosystemSummary, len(schema.SupportedEcosystems)),
		},
		Details:      acc.Details,
		UniqueStacks: make(map[schema.Ecosystem]schema.FrequencyMap, len(schema.SupportedEcosystems)),
	}

	for _, eco := range schema.SupportedEcosystems {
		stacks := algo.CountStrings(acc.Stacks[eco])
		deps := algo.CountStrings(acc.Deps[eco])
		res.UniqueStacks[eco] = stacks
		res.Summary.Ecosystems[eco] = schema.EcosystemSummary{
			StackRequestsCount:                     acc.Requests[eco],
			UniqueDependenciesWithFrequency:        deps,
			UniqueUnknownDependenciesWithFrequency: algo.CountStrings(acc.UnknownDeps[eco]),
			UniqueStacksWithFrequency:              stacks,
			UniqueStacksWithDepsCount:              algo.StackDepsCount(stacks),
			AverageResponseTime:                    FormatAverage(acc.ResponseTime[eco], acc.Requests[eco]),
			Trending: schema.Trending{
				TopStacks: algo.TopN(stacks, a.opts.TopStacks),
				TopDeps:   algo.TopN(deps, a.opts.TopDeps),
			},
			PreviouslyUnknownDependencies: []schema.Dependency{},
		}
	}
	return res
}

// licenseNames keeps the license value of entries that carry one.
func (a *Aggregator) licenseNames(entries []any) []any {
	names := make([]any, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		lic, ok := m["license"]
		if !ok {
			continue
		}
		if _, scalar := algo.ScalarKey(lic); !scalar {
			a.opts.Metrics.KeyAnomaly()
		}
		names = append(names, lic)
	}
	return names
}
