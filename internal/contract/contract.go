// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/huangsam/stackreport/schema"
)

// ErrInvalidDateFormat is returned when a window date is not in YYYY-MM-DD form.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

// ReportQueries defines the read and retention operations on the analytics database.
type ReportQueries interface {
	// StackAnalysisIDs returns the ids of stack analysis requests submitted within [start, end].
	StackAnalysisIDs(ctx context.Context, start, end string) ([]string, error)

	// WorkerResults returns the raw task results of a worker kind for the given request ids.
	WorkerResults(ctx context.Context, kind schema.WorkerKind, ids []string) ([]json.RawMessage, error)

	// IngestionEPVs returns the package versions analysed within [start, end].
	IngestionEPVs(ctx context.Context, start, end string) ([]schema.EPV, error)

	// CleanupTaskMeta deletes task metadata finished at or before cutoff.
	CleanupTaskMeta(ctx context.Context, cutoff time.Time) (int64, error)

	// CleanupWorkerResults deletes worker results that ended at or before cutoff.
	CleanupWorkerResults(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// ObjectStore defines opaque storage of JSON documents.
// A missing key is reported as found=false, never as an error.
type ObjectStore interface {
	GetJSON(ctx context.Context, bucket, key string, v any) (bool, error)
	PutJSON(ctx context.Context, bucket, key string, v any) error
	Close() error
}

// GraphLookup defines the typed lookups run against the graph database.
// Keys missing from a result map were either absent or in a failed batch.
type GraphLookup interface {
	// KnownLatestVersions returns what the graph records as the latest version of each package.
	KnownLatestVersions(ctx context.Context, pkgs []schema.PackageKey) map[schema.PackageKey]schema.LatestVersionInfo

	// PresentVersions reports which package versions exist as graph nodes.
	PresentVersions(ctx context.Context, epvs []schema.EPV) map[schema.EPV]bool

	// PresentCVEs reports which CVE ids exist as graph nodes.
	PresentCVEs(ctx context.Context, ids []string) map[string]bool
}

// VersionResolver fetches the actual latest version of a package from its public registry.
// An empty version means the package is not publicly resolvable.
type VersionResolver interface {
	LatestVersion(ctx context.Context, eco schema.Ecosystem, pkg string) (string, error)
}

// Rectifier asks the ingestion service to correct stale latest versions.
type Rectifier interface {
	RectifyLatestVersions(ctx context.Context, eco schema.Ecosystem, entries []schema.IncorrectLatestVersion) error
}

// IngestTrigger asks the ingestion service to ingest package versions.
type IngestTrigger interface {
	IngestVersions(ctx context.Context, eco schema.Ecosystem, pkgs []schema.PackageVersion) error
}

// RetrainTrigger starts model retraining for an ecosystem.
type RetrainTrigger interface {
	Invoke(ctx context.Context, bucket string, eco schema.Ecosystem, dataVersion, repoURL string) error
}

// CVEReporter builds the CVE database activity report for a day.
type CVEReporter interface {
	Report(ctx context.Context, updatedOn string) (*schema.CVEReport, error)
}

// SentryReporter builds the daily error report.
type SentryReporter interface {
	Report(ctx context.Context) (*schema.SentryReport, error)
}

// RunStore defines the interface for tracking report runs and their frequencies.
type RunStore interface {
	// BeginRun creates a new report run and returns its unique ID
	BeginRun(freq schema.Frequency, windowStart, windowEnd string, startTime time.Time) (string, error)

	// EndRun updates the report run with completion data
	EndRun(runID string, endTime time.Time, stackCount int, status schema.RunStatus) error

	// RecordFrequencies stores one frequency map produced by a run
	RecordFrequencies(runID string, eco schema.Ecosystem, kind string, freq schema.FrequencyMap) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStoreStatus, error)

	// Close closes the underlying connection
	Close() error
}
