package schema

// FrequencyMap maps a scalar key (stack, dependency, CVE or license) to its occurrence count.
type FrequencyMap map[string]int

// Dependency is one (name, version) pair as it appears in a stack.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RawStackRecord is one decoded stack-analysis result, independent of the worker that produced it.
type RawStackRecord struct {
	Ecosystem              Ecosystem
	Dependencies           []Dependency
	UnknownDependencies    []Dependency
	UnknownLicenses        []any
	PublicVulnerabilities  []map[string]any
	PrivateVulnerabilities []map[string]any
	CVEKeys                []string
	StartedAt              string
	EndedAt                string
}

// ReportHeader is the versioned envelope of a report document.
type ReportHeader struct {
	From          string `json:"from"`
	To            string `json:"to"`
	GeneratedOn   string `json:"generated_on"`
	ReportVersion string `json:"report_version,omitempty"`
}

// LicenseInfo carries the license findings of one stack.
type LicenseInfo struct {
	Conflict bool  `json:"conflict"`
	Unknown  []any `json:"unknown"`
}

// CVEList wraps the raw vulnerability entries of one stack.
type CVEList struct {
	CVEList []map[string]any `json:"cve_list"`
}

// StackDetail is the per-request entry of a report.
type StackDetail struct {
	Ecosystem              Ecosystem   `json:"ecosystem"`
	Stack                  []string    `json:"stack"`
	UnknownDependencies    []string    `json:"unknown_dependencies"`
	License                LicenseInfo `json:"license"`
	PublicVulnerabilities  CVEList     `json:"public_vulnerabilities"`
	PrivateVulnerabilities CVEList     `json:"private_vulnerabilities"`
	ResponseTime           string      `json:"response_time"`
}

// TrendEntry is one ranked item of a trending list.
type TrendEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Trending holds the top stacks and dependencies of an ecosystem.
type Trending struct {
	TopStacks []TrendEntry `json:"top_stacks"`
	TopDeps   []TrendEntry `json:"top_deps"`
}

// EcosystemSummary holds the aggregate statistics of one ecosystem.
type EcosystemSummary struct {
	StackRequestsCount                     int          `json:"stack_requests_count"`
	UniqueDependenciesWithFrequency        FrequencyMap `json:"unique_dependencies_with_frequency"`
	UniqueUnknownDependenciesWithFrequency FrequencyMap `json:"unique_unknown_dependencies_with_frequency"`
	UniqueStacksWithFrequency              FrequencyMap `json:"unique_stacks_with_frequency"`
	UniqueStacksWithDepsCount              FrequencyMap `json:"unique_stacks_with_deps_count"`
	AverageResponseTime                    string       `json:"average_response_time"`
	Trending                               Trending     `json:"trending"`
	PreviouslyUnknownDependencies          []Dependency `json:"previously_unknown_dependencies"`
}

// StacksSummary is the report-level aggregate section.
type StacksSummary struct {
	TotalStackRequestsCount            int                            `json:"total_stack_requests_count"`
	UniqueUnknownLicensesWithFrequency FrequencyMap                   `json:"unique_unknown_licenses_with_frequency"`
	UniqueCVEs                         FrequencyMap                   `json:"unique_cves"`
	TotalAverageResponseTime           string                         `json:"total_average_response_time"`
	CVEReport                          *CVEReport                     `json:"cve_report"`
	Ecosystems                         map[Ecosystem]EcosystemSummary `json:"ecosystems"`
}

// ReportDocument is the persisted stack report.
type ReportDocument struct {
	Report        ReportHeader  `json:"report"`
	StacksSummary StacksSummary `json:"stacks_summary"`
	StacksDetails []StackDetail `json:"stacks_details"`
}

// GitHubStats holds the CVE database pull request counters.
type GitHubStats struct {
	OpenCount      map[string]int `json:"open_count"`
	FalsePositives int            `json:"false_positives"`
}

// CVEIngestion lists CVE ids found or missing in the graph.
type CVEIngestion struct {
	Ingested []string `json:"ingested"`
	Missed   []string `json:"missed"`
}

// CVEReport summarizes CVE database activity for a day.
type CVEReport struct {
	GitHubStats GitHubStats  `json:"github_stats"`
	Ingestion   CVEIngestion `json:"ingestion"`
}

// SentryError is one error issue reported by Sentry.
type SentryError struct {
	ID         string `json:"id"`
	LastSeen   string `json:"last_seen"`
	Pod        string `json:"pod"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

// SentryServerErrors groups errors of one server.
type SentryServerErrors struct {
	TotalErrors int           `json:"total_errors"`
	Errors      []SentryError `json:"errors"`
}

// SentryReport is the persisted daily error report.
type SentryReport struct {
	ErrorReport map[string]*SentryServerErrors `json:"error_report"`
}
