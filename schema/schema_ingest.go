package schema

import "cmp"

// PackageKey identifies a package within an ecosystem.
type PackageKey struct {
	Ecosystem Ecosystem
	Name      string
}

// EPV identifies one published package release.
type EPV struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
}

// Package returns the package part of the triple.
func (e EPV) Package() PackageKey {
	return PackageKey{Ecosystem: e.Ecosystem, Name: e.Name}
}

// Compare orders triples by ecosystem, name and version.
func (e EPV) Compare(o EPV) int {
	if c := cmp.Compare(e.Ecosystem, o.Ecosystem); c != 0 {
		return c
	}
	if c := cmp.Compare(e.Name, o.Name); c != 0 {
		return c
	}
	return cmp.Compare(e.Version, o.Version)
}

// Compare orders package keys by ecosystem and name.
func (p PackageKey) Compare(o PackageKey) int {
	if c := cmp.Compare(p.Ecosystem, o.Ecosystem); c != 0 {
		return c
	}
	return cmp.Compare(p.Name, o.Name)
}

// LatestVersionInfo is what is known about the newest release of a package.
type LatestVersionInfo struct {
	Known         string
	Actual        string
	NonCVEVersion string
}

// IncorrectLatestVersion reports a package whose known latest version is stale.
type IncorrectLatestVersion struct {
	Package             string `json:"package"`
	ActualLatestVersion string `json:"actual_latest_version"`
	KnownLatestVersion  string `json:"known_latest_version"`
}

// PackageVersion is a (package, version) pair used by the ingestion triggers.
type PackageVersion struct {
	Package string `json:"package"`
	Version string `json:"version"`
}

// IngestionStats holds the reconciliation counters of one ecosystem.
type IngestionStats struct {
	IncorrectLatestVersions int      `json:"incorrect_latest_versions"`
	CorrectLatestVersions   int      `json:"correct_latest_versions"`
	IngestedInGraph         int      `json:"ingested_in_graph"`
	NotIngestedInGraph      int      `json:"not_ingested_in_graph"`
	LatestVersionAccuracy   *float64 `json:"latest_version_accuracy,omitempty"`
	IngestionAccuracy       *float64 `json:"ingestion_accuracy,omitempty"`
}

// VersionDetail records graph presence of one version.
type VersionDetail struct {
	SyncedToGraph *bool `json:"synced_to_graph,omitempty"`
}

// PackageDetail holds the per-package ingestion findings.
type PackageDetail struct {
	KnownLatestVersion  string                    `json:"known_latest_version,omitempty"`
	ActualLatestVersion string                    `json:"actual_latest_version,omitempty"`
	NonCVEVersion       string                    `json:"non_cve_version,omitempty"`
	PrivatePackage      bool                      `json:"private_pkg,omitempty"`
	LatestNodeInGraph   *bool                     `json:"latest_node_in_graph,omitempty"`
	Versions            map[string]*VersionDetail `json:"versions"`
}

// IngestionSummary is the aggregate section of the ingestion report.
type IngestionSummary struct {
	IncorrectLatestVersion map[Ecosystem][]IncorrectLatestVersion `json:"incorrect_latest_version"`
	UnknownDeps            map[Ecosystem][]EPV                    `json:"unknown_deps"`
	Stats                  map[Ecosystem]*IngestionStats          `json:"stats"`
	MissingLatestNode      map[Ecosystem][]PackageVersion         `json:"missing_latest_node"`
}

// IngestionReport is the persisted ingestion reconciliation document.
type IngestionReport struct {
	Report           ReportHeader                            `json:"report"`
	IngestionSummary IngestionSummary                        `json:"ingestion_summary"`
	IngestionDetails map[Ecosystem]map[string]*PackageDetail `json:"ingestion_details"`
}
