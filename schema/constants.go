package schema

// Custom string types for type safety.
type (
	// Ecosystem represents a package-management platform.
	Ecosystem string

	// Frequency represents the reporting cadence of a run.
	Frequency string

	// WorkerKind identifies the analysis worker whose results are aggregated.
	WorkerKind string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the relational backend.
	DatabaseBackend string

	// ObjectBackend represents where report documents are stored.
	ObjectBackend string

	// RunStatus represents the outcome of a tracked report run.
	RunStatus string
)

// All ecosystems supported by the report.
const (
	NPM    Ecosystem = "npm"
	Golang Ecosystem = "golang"
	PyPI   Ecosystem = "pypi"
	Maven  Ecosystem = "maven"
)

// All reporting frequencies.
const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// All worker kinds with a decoding strategy.
const (
	StackAggregatorV2 WorkerKind = "stack_aggregator_v2"
	StackAggregatorV1 WorkerKind = "stack_aggregator"
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All object store backends supported.
const (
	SQLObjects  ObjectBackend = "sql" // default
	GCSObjects  ObjectBackend = "gcs"
	NoneObjects ObjectBackend = "none"
)

// All run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunNoData    RunStatus = "no_data"
	RunFailed    RunStatus = "failed"
)

// DefaultScope is the object key prefix for the current report schema.
const DefaultScope = "v2"

// SupportedEcosystems lists the ecosystems in report order.
var SupportedEcosystems = []Ecosystem{NPM, Golang, PyPI, Maven}

// ValidEcosystems lists all valid ecosystems.
var ValidEcosystems = map[Ecosystem]struct{}{
	NPM:    {},
	Golang: {},
	PyPI:   {},
	Maven:  {},
}

// ValidFrequencies lists all valid reporting frequencies.
var ValidFrequencies = map[Frequency]struct{}{
	Daily:   {},
	Weekly:  {},
	Monthly: {},
}

// ValidWorkerKinds lists all worker kinds with a decoding strategy.
var ValidWorkerKinds = map[WorkerKind]struct{}{
	StackAggregatorV2: {},
	StackAggregatorV1: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidObjectBackends lists all valid object store backends.
var ValidObjectBackends = map[ObjectBackend]struct{}{
	SQLObjects:  {},
	GCSObjects:  {},
	NoneObjects: {},
}

// AuditVersion returns the `_audit.version` stamped on results of this worker kind.
func (w WorkerKind) AuditVersion() string {
	switch w {
	case StackAggregatorV1:
		return "v1"
	default:
		return "v2"
	}
}
