package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/stackreport/schema"
)

// Default values for configuration.
const (
	DefaultTopStacks            = 3
	DefaultTopDeps              = 5
	DefaultGraphBatchSize       = 50
	DefaultKeepMetaDays         = 7
	DefaultKeepWorkerResultDays = 60
	DefaultHTTPRetries          = 3
	DefaultHTTPBackoff          = 200 * time.Millisecond
	DefaultHTTPTimeout          = 30 * time.Second
	DefaultRegistryRPS          = 10.0
	DefaultEMRURL               = "http://f8a-emr-deployment:6006"
	DefaultGitHubAPIURL         = "https://api.github.com"
	DefaultCVEDBRepo            = "codeready-analytics/cvedb"
	DefaultTrainingRepoBase     = "https://github.com/fabric8-analytics/"
)

// DefaultTrainingRepos maps each ecosystem to the repository holding its training code.
var DefaultTrainingRepos = map[schema.Ecosystem]string{
	schema.Maven:  DefaultTrainingRepoBase + "f8a-hpf-insights",
	schema.PyPI:   DefaultTrainingRepoBase + "f8a-pypi-insights",
	schema.NPM:    DefaultTrainingRepoBase + "fabric8-analytics-npm-insights",
	schema.Golang: DefaultTrainingRepoBase + "f8a-golang-insights",
}

// Config holds the runtime configuration for a report run.
// This struct remains the "final, validated" config.
type Config struct {
	Today     time.Time // Reference day for report windows
	Scope     string    `validate:"required,objkeyprefix"`
	LogLevel  string    `validate:"oneof=debug info warn warning error"`
	Retrain   bool
	Worker    schema.WorkerKind
	Frequency schema.Frequency
	Name      string
	Ingestion bool // show the ingestion report instead of the stack report

	Output     schema.OutputMode
	OutputFile string
	Width      int `validate:"min=0"` // Terminal width override (0 = auto-detect)
	UseColors  bool

	TopStacks            int `validate:"min=1,max=100"`
	TopDeps              int `validate:"min=1,max=100"`
	GraphBatchSize       int `validate:"min=1,max=500"`
	KeepMetaDays         int `validate:"min=1"`
	KeepWorkerResultDays int `validate:"min=1"`

	SourceBackend   schema.DatabaseBackend
	SourceDBConnect string // Please use env var as this is plaintext

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext

	ObjectBackend      schema.ObjectBackend
	ReportBucket       string `validate:"required"`
	GCSCredentialsFile string `validate:"omitempty,file"`
	DeploymentPrefix   string `validate:"omitempty,objkeyprefix"`
	ModelBuckets       map[schema.Ecosystem]string
	TrainingRepos      map[schema.Ecosystem]string `validate:"dive,omitempty,url"`

	GremlinURL      string `validate:"omitempty,url"`
	IngestAPIURL    string `validate:"omitempty,url"`
	EMRURL          string `validate:"omitempty,url"`
	SentryIssuesURL string `validate:"omitempty,url"`
	SentryTagsURL   string `validate:"omitempty,url"`
	SentryToken     string // Please use env var as this is plaintext
	GitHubAPIURL    string `validate:"omitempty,url"`
	GitHubToken     string // Please use env var as this is plaintext
	CVEDBRepo       string `validate:"omitempty,contains=/"`
	PushgatewayURL  string `validate:"omitempty,url"`

	HTTPRetries int           `validate:"min=0,max=10"`
	HTTPBackoff time.Duration `validate:"min=0"`
	HTTPTimeout time.Duration `validate:"min=0"`
	RegistryRPS float64       `validate:"gt=0"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Date            string `mapstructure:"date"`
	Scope           string `mapstructure:"report-scope"`
	LogLevel        string `mapstructure:"log-level"`
	SourceBackend   string `mapstructure:"source-backend"`
	SourceDBConnect string `mapstructure:"source-db-connect"`
	RunBackend      string `mapstructure:"run-backend"`
	RunDBConnect    string `mapstructure:"run-db-connect"`
	ObjectBackend   string `mapstructure:"object-backend"`
	ReportBucket    string `mapstructure:"report-bucket"`
	GCSCredentials  string `mapstructure:"gcs-credentials-file"`
	PushgatewayURL  string `mapstructure:"pushgateway-url"`

	// --- Fields from the config file or env only ---
	DeploymentPrefix     string `mapstructure:"deployment-prefix"`
	WorkerKind           string `mapstructure:"worker-kind"`
	TopStacks            int    `mapstructure:"top-stacks"`
	TopDeps              int    `mapstructure:"top-deps"`
	GraphBatchSize       int    `mapstructure:"graph-batch-size"`
	KeepMetaDays         int    `mapstructure:"keep-meta-days"`
	KeepWorkerResultDays int    `mapstructure:"keep-worker-result-days"`
	GremlinURL           string `mapstructure:"gremlin-url"`
	IngestAPIURL         string `mapstructure:"ingest-api-url"`
	EMRURL               string `mapstructure:"emr-url"`
	SentryIssuesURL      string `mapstructure:"sentry-issues-url"`
	SentryTagsURL        string `mapstructure:"sentry-tags-url"`
	SentryToken          string `mapstructure:"sentry-token"`
	GitHubAPIURL         string `mapstructure:"github-api-url"`
	GitHubToken          string `mapstructure:"github-token"`
	CVEDBRepo            string `mapstructure:"cvedb-repo"`
	HTTPRetries          int    `mapstructure:"http-retries"`
	HTTPBackoff          string `mapstructure:"http-backoff"`
	HTTPTimeout          string `mapstructure:"http-timeout"`

	RegistryRPS float64 `mapstructure:"registry-rps"`

	MavenModelBucket  string `mapstructure:"maven-model-bucket"`
	PyPIModelBucket   string `mapstructure:"pypi-model-bucket"`
	NPMModelBucket    string `mapstructure:"npm-model-bucket"`
	GolangModelBucket string `mapstructure:"golang-model-bucket"`

	MavenTrainingRepo  string `mapstructure:"maven-training-repo"`
	PyPITrainingRepo   string `mapstructure:"pypi-training-repo"`
	NPMTrainingRepo    string `mapstructure:"npm-training-repo"`
	GolangTrainingRepo string `mapstructure:"golang-training-repo"`

	// --- Fields from weeklyCmd.Flags() ---
	Retrain bool `mapstructure:"retrain"`

	// --- Fields from showCmd.Flags() ---
	Frequency  string `mapstructure:"frequency"`
	Name       string `mapstructure:"name"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
	Ingestion  bool   `mapstructure:"ingestion"`
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("objkeyprefix", validateObjectKeyPrefix)
}

// validateObjectKeyPrefix rejects prefixes that would produce empty key segments.
func validateObjectKeyPrefix(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return !strings.HasPrefix(s, "/") && !strings.HasSuffix(s, "/") && !strings.Contains(s, "//")
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	return process(cfg, input, true)
}

// ProcessForReading is ProcessAndValidate for commands that only read persisted
// reports and run history; the analytics source database is not validated.
func ProcessForReading(cfg *Config, input *ConfigRawInput) error {
	return process(cfg, input, false)
}

func process(cfg *Config, input *ConfigRawInput, needSource bool) error {
	if err := processDate(cfg, input, time.Now()); err != nil {
		return err
	}
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if needSource {
		if err := validateSourceBackend(cfg, input); err != nil {
			return err
		}
	}
	if err := validateStorageBackends(cfg, input); err != nil {
		return err
	}
	if err := processHTTPSettings(cfg, input); err != nil {
		return err
	}
	processBuckets(cfg, input)
	if err := configValidate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date or returns ErrInvalidDateFormat.
func ParseDate(s string) (time.Time, error) {
	if !schema.ValidDate(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return time.Parse(schema.DateLayout, s)
}

// processDate resolves the reference day from --date, defaulting to now.
func processDate(cfg *Config, input *ConfigRawInput, now time.Time) error {
	if input.Date == "" {
		cfg.Today = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	}
	t, err := ParseDate(input.Date)
	if err != nil {
		return err
	}
	cfg.Today = t
	return nil
}

// validateSimpleInputs processes and validates all non-backend fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Scope = strings.TrimSpace(input.Scope)
	if cfg.Scope == "" {
		cfg.Scope = schema.DefaultScope
	}
	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Retrain = input.Retrain
	cfg.Ingestion = input.Ingestion
	cfg.Name = strings.TrimSpace(input.Name)
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.DeploymentPrefix = strings.TrimSpace(input.DeploymentPrefix)

	cfg.TopStacks = defaultInt(input.TopStacks, DefaultTopStacks)
	cfg.TopDeps = defaultInt(input.TopDeps, DefaultTopDeps)
	cfg.GraphBatchSize = defaultInt(input.GraphBatchSize, DefaultGraphBatchSize)
	cfg.KeepMetaDays = defaultInt(input.KeepMetaDays, DefaultKeepMetaDays)
	cfg.KeepWorkerResultDays = defaultInt(input.KeepWorkerResultDays, DefaultKeepWorkerResultDays)

	if input.Color == "" {
		cfg.UseColors = true
	} else {
		colors, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid --color value: %w", err)
		}
		cfg.UseColors = colors
	}

	cfg.Frequency = schema.Frequency(strings.ToLower(input.Frequency))
	if cfg.Frequency == "" {
		cfg.Frequency = schema.Daily
	}
	if _, ok := schema.ValidFrequencies[cfg.Frequency]; !ok {
		return fmt.Errorf("invalid frequency '%s'. must be daily, weekly, monthly", input.Frequency)
	}

	cfg.Worker = schema.WorkerKind(strings.ToLower(strings.TrimSpace(input.WorkerKind)))
	if cfg.Worker == "" {
		cfg.Worker = schema.StackAggregatorV2
	}
	if _, ok := schema.ValidWorkerKinds[cfg.Worker]; !ok {
		return fmt.Errorf("invalid worker kind '%s'. must be stack_aggregator_v2, stack_aggregator", input.WorkerKind)
	}

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", cfg.Output)
	}

	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSourceBackend validates the analytics database configuration.
func validateSourceBackend(cfg *Config, input *ConfigRawInput) error {
	cfg.SourceBackend = schema.DatabaseBackend(strings.ToLower(input.SourceBackend))
	if cfg.SourceBackend == "" {
		cfg.SourceBackend = schema.PostgreSQLBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.SourceBackend]; !ok || cfg.SourceBackend == schema.NoneBackend {
		return fmt.Errorf("invalid source backend '%s'. must be sqlite, mysql, postgresql", input.SourceBackend)
	}
	cfg.SourceDBConnect = input.SourceDBConnect
	if err := ValidateDatabaseConnectionString(cfg.SourceBackend, cfg.SourceDBConnect); err != nil {
		return fmt.Errorf("source database: %w", err)
	}
	return nil
}

// validateStorageBackends validates the run store and object store configurations.
func validateStorageBackends(cfg *Config, input *ConfigRawInput) error {
	// --- Run Backend Validation ---
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if cfg.RunBackend == "" {
		cfg.RunBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return fmt.Errorf("run database: %w", err)
	}

	// --- Object Backend Validation ---
	cfg.ObjectBackend = schema.ObjectBackend(strings.ToLower(input.ObjectBackend))
	if cfg.ObjectBackend == "" {
		cfg.ObjectBackend = schema.SQLObjects
	}
	if _, ok := schema.ValidObjectBackends[cfg.ObjectBackend]; !ok {
		return fmt.Errorf("invalid object backend '%s'. must be sql, gcs, none", input.ObjectBackend)
	}
	if cfg.ObjectBackend == schema.SQLObjects && cfg.RunBackend == schema.NoneBackend {
		return fmt.Errorf("object backend 'sql' stores documents in the run database, which cannot be 'none'")
	}
	cfg.ReportBucket = strings.TrimSpace(input.ReportBucket)
	cfg.GCSCredentialsFile = input.GCSCredentials

	return nil
}

// processHTTPSettings resolves endpoints and retry tuning of external services.
func processHTTPSettings(cfg *Config, input *ConfigRawInput) error {
	cfg.GremlinURL = strings.TrimRight(input.GremlinURL, "/")
	cfg.IngestAPIURL = strings.TrimRight(input.IngestAPIURL, "/")
	cfg.EMRURL = strings.TrimRight(defaultString(input.EMRURL, DefaultEMRURL), "/")
	cfg.SentryIssuesURL = input.SentryIssuesURL
	cfg.SentryTagsURL = input.SentryTagsURL
	cfg.SentryToken = input.SentryToken
	cfg.GitHubAPIURL = strings.TrimRight(defaultString(input.GitHubAPIURL, DefaultGitHubAPIURL), "/")
	cfg.GitHubToken = input.GitHubToken
	cfg.CVEDBRepo = defaultString(input.CVEDBRepo, DefaultCVEDBRepo)
	cfg.PushgatewayURL = input.PushgatewayURL

	cfg.HTTPRetries = input.HTTPRetries
	if cfg.HTTPRetries == 0 {
		cfg.HTTPRetries = DefaultHTTPRetries
	}
	cfg.RegistryRPS = input.RegistryRPS
	if cfg.RegistryRPS == 0 {
		cfg.RegistryRPS = DefaultRegistryRPS
	}

	var err error
	if cfg.HTTPBackoff, err = parseDurationOr(input.HTTPBackoff, DefaultHTTPBackoff); err != nil {
		return fmt.Errorf("invalid http-backoff: %w", err)
	}
	if cfg.HTTPTimeout, err = parseDurationOr(input.HTTPTimeout, DefaultHTTPTimeout); err != nil {
		return fmt.Errorf("invalid http-timeout: %w", err)
	}
	return nil
}

// processBuckets maps per-ecosystem model buckets and training repositories.
func processBuckets(cfg *Config, input *ConfigRawInput) {
	cfg.ModelBuckets = map[schema.Ecosystem]string{}
	for eco, bucket := range map[schema.Ecosystem]string{
		schema.Maven:  input.MavenModelBucket,
		schema.PyPI:   input.PyPIModelBucket,
		schema.NPM:    input.NPMModelBucket,
		schema.Golang: input.GolangModelBucket,
	} {
		if b := strings.TrimSpace(bucket); b != "" {
			cfg.ModelBuckets[eco] = b
		}
	}

	cfg.TrainingRepos = map[schema.Ecosystem]string{}
	for eco, repo := range map[schema.Ecosystem]string{
		schema.Maven:  input.MavenTrainingRepo,
		schema.PyPI:   input.PyPITrainingRepo,
		schema.NPM:    input.NPMTrainingRepo,
		schema.Golang: input.GolangTrainingRepo,
	} {
		cfg.TrainingRepos[eco] = defaultString(strings.TrimSpace(repo), DefaultTrainingRepos[eco])
	}
}

// formatValidationError turns validator errors into one readable message per field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDurationOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
