package schema

import "time"

// RunStoreStatus represents the status of the report run store.
type RunStoreStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	LastRunID     string           `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TotalStacks   int              `json:"total_stacks"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// ReportRunRecord represents a row from the report runs table.
type ReportRunRecord struct {
	RunID         string
	Frequency     string
	WindowStart   string
	WindowEnd     string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	StackCount    int32
	Status        string
}

// FrequencyRecord represents a row from the report frequencies table.
type FrequencyRecord struct {
	RunID     string
	Ecosystem string
	Kind      string
	ItemKey   string
	Count     int32
}

// Frequency row kinds stored per run.
const (
	KindStack      = "stack"
	KindDependency = "dependency"
	KindUnknown    = "unknown_dependency"
)

// CleanupResult reports rows removed by a retention cleanup.
type CleanupResult struct {
	TaskMetaDeleted     int64 `json:"task_meta_deleted"`
	WorkerResultDeleted int64 `json:"worker_result_deleted"`
}
