// Package ingest reconciles freshly analysed package versions against the graph and the public registries.
package ingest

import (
	"context"
	"maps"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/schema"
)

// Reconciler cross-checks EPVs against the graph and the registries.
// A nil Rectifier skips rectification.
type Reconciler struct {
	Graph     contract.GraphLookup
	Resolver  contract.VersionResolver
	Rectifier contract.Rectifier
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// packageState is what the reconciler learned about one package.
type packageState struct {
	info     schema.LatestVersionInfo
	resolved bool
}

// Reconcile builds the ingestion report for the given EPVs.
//
// Packages without a publicly resolvable latest version are marked private and kept out of
// every counter. Repeated triples are reconciled once. Rectify is requested per ecosystem that
// has at least one stale latest version; a failed rectify never stops the others.
func (r *Reconciler) Reconcile(ctx context.Context, header schema.ReportHeader, epvs []schema.EPV) *schema.IngestionReport {
	logger := r.logger()
	report := schema.NewIngestionReport(header.From, header.To, header.GeneratedOn)
	for _, eco := range schema.SupportedEcosystems {
		report.IngestionSummary.Stats[eco] = &schema.IngestionStats{}
	}

	epvs = uniqueEPVs(epvs)
	if len(epvs) == 0 {
		return report
	}
	populateDetails(report, epvs)

	pkgs := r.lookupPackages(ctx, epvs)
	present := r.Graph.PresentVersions(ctx, epvs)

	summary := &report.IngestionSummary
	checked := map[schema.PackageKey]struct{}{}
	var latest []schema.EPV

	for _, epv := range epvs {
		eco := epv.Ecosystem
		stats := statsFor(summary, eco)
		if _, ok := summary.IncorrectLatestVersion[eco]; !ok {
			summary.IncorrectLatestVersion[eco] = []schema.IncorrectLatestVersion{}
			summary.UnknownDeps[eco] = []schema.EPV{}
		}

		detail := report.IngestionDetails[eco][epv.Name]
		state := pkgs[epv.Package()]
		if !state.resolved {
			continue
		}
		info := state.info
		if info.Actual == "" {
			detail.PrivatePackage = true
			continue
		}

		detail.KnownLatestVersion = info.Known
		detail.ActualLatestVersion = info.Actual
		detail.NonCVEVersion = info.NonCVEVersion
		latest = append(latest, schema.EPV{Ecosystem: eco, Name: epv.Name, Version: info.Actual})

		if info.Actual != info.Known {
			if _, seen := checked[epv.Package()]; !seen {
				checked[epv.Package()] = struct{}{}
				summary.IncorrectLatestVersion[eco] = append(summary.IncorrectLatestVersion[eco], schema.IncorrectLatestVersion{
					Package:             epv.Name,
					ActualLatestVersion: info.Actual,
					KnownLatestVersion:  info.Known,
				})
				stats.IncorrectLatestVersions++
			}
		} else {
			stats.CorrectLatestVersions++
		}

		synced := present[epv]
		detail.Versions[epv.Version].SyncedToGraph = &synced
		if synced {
			stats.IngestedInGraph++
		} else {
			summary.UnknownDeps[eco] = append(summary.UnknownDeps[eco], epv)
			stats.NotIngestedInGraph++
		}
	}

	for _, eco := range slices.Sorted(maps.Keys(summary.Stats)) {
		stats := summary.Stats[eco]
		stats.LatestVersionAccuracy = Accuracy(stats.CorrectLatestVersions, stats.IncorrectLatestVersions)
		stats.IngestionAccuracy = Accuracy(stats.IngestedInGraph, stats.NotIngestedInGraph)

		if stats.IncorrectLatestVersions > 0 && r.Rectifier != nil {
			r.rectify(ctx, eco, summary.IncorrectLatestVersion[eco])
		}
	}

	logger.Info("Checking if latest node exists in graph", "packages", len(latest))
	r.checkLatestNodes(ctx, report, uniqueEPVs(latest))
	return report
}

// Accuracy returns round(correct*100/(correct+incorrect), 2), or nil when both are zero.
func Accuracy(correct, incorrect int) *float64 {
	total := correct + incorrect
	if total == 0 {
		return nil
	}
	v := math.Round(float64(correct)*100/float64(total)*100) / 100
	return &v
}

func (r *Reconciler) lookupPackages(ctx context.Context, epvs []schema.EPV) map[schema.PackageKey]packageState {
	logger := r.logger()
	var keys []schema.PackageKey
	seen := map[schema.PackageKey]struct{}{}
	for _, epv := range epvs {
		if _, ok := seen[epv.Package()]; ok {
			continue
		}
		seen[epv.Package()] = struct{}{}
		keys = append(keys, epv.Package())
	}

	logger.Info("Fetching details of the latest version for the epvs", "packages", len(keys))
	known := r.Graph.KnownLatestVersions(ctx, keys)

	out := make(map[schema.PackageKey]packageState, len(keys))
	for _, key := range keys {
		actual, err := r.Resolver.LatestVersion(ctx, key.Ecosystem, key.Name)
		if err != nil {
			logger.Error("Unable to resolve latest version", "ecosystem", key.Ecosystem, "package", key.Name, "err", err)
			r.Metrics.IntegrationFailed("registry")
			continue
		}
		info := known[key]
		info.Actual = actual
		out[key] = packageState{info: info, resolved: true}
	}
	return out
}

func (r *Reconciler) rectify(ctx context.Context, eco schema.Ecosystem, entries []schema.IncorrectLatestVersion) {
	logger := r.logger()
	logger.Info("Rectifying incorrect latest versions", "ecosystem", eco, "count", len(entries))
	err := r.Rectifier.RectifyLatestVersions(ctx, eco, entries)
	r.Metrics.Rectify(string(eco), err)
	if err != nil {
		logger.Error("Rectify call failed", "ecosystem", eco, "err", err)
	}
}

func (r *Reconciler) checkLatestNodes(ctx context.Context, report *schema.IngestionReport, latest []schema.EPV) {
	if len(latest) == 0 {
		return
	}
	present := r.Graph.PresentVersions(ctx, latest)
	missing := report.IngestionSummary.MissingLatestNode
	for _, epv := range latest {
		ok := present[epv]
		report.IngestionDetails[epv.Ecosystem][epv.Name].LatestNodeInGraph = &ok
		if !ok {
			missing[epv.Ecosystem] = append(missing[epv.Ecosystem], schema.PackageVersion{
				Package: epv.Name,
				Version: epv.Version,
			})
		}
	}
}

func (r *Reconciler) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logx.Discard()
}

func populateDetails(report *schema.IngestionReport, epvs []schema.EPV) {
	details := report.IngestionDetails
	for _, epv := range epvs {
		pkgs, ok := details[epv.Ecosystem]
		if !ok {
			pkgs = map[string]*schema.PackageDetail{}
			details[epv.Ecosystem] = pkgs
		}
		pkg, ok := pkgs[epv.Name]
		if !ok {
			pkg = &schema.PackageDetail{Versions: map[string]*schema.VersionDetail{}}
			pkgs[epv.Name] = pkg
		}
		if _, ok := pkg.Versions[epv.Version]; !ok {
			pkg.Versions[epv.Version] = &schema.VersionDetail{}
		}
	}
}

func statsFor(summary *schema.IngestionSummary, eco schema.Ecosystem) *schema.IngestionStats {
	stats, ok := summary.Stats[eco]
	if !ok {
		stats = &schema.IngestionStats{}
		summary.Stats[eco] = stats
	}
	return stats
}

// uniqueEPVs drops repeated triples while keeping first-seen order.
func uniqueEPVs(epvs []schema.EPV) []schema.EPV {
	seen := make(map[schema.EPV]struct{}, len(epvs))
	out := make([]schema.EPV, 0, len(epvs))
	for _, epv := range epvs {
		if _, ok := seen[epv]; ok {
			continue
		}
		seen[epv] = struct{}{}
		out = append(out, epv)
	}
	return out
}
