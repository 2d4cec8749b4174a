package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/rdb"
	"github.com/huangsam/stackreport/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsSetup loads the minimal configuration needed for run history operations.
// It avoids the analytics database and the report bucket entirely.
func runsSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("run-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("run-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// openRunStore opens the run store configured by runsSetup.
func openRunStore() *rdb.RunStoreImpl {
	store, err := rdb.NewRunStore(cfg.RunBackend, cfg.RunDBConnect)
	if err != nil {
		contract.LogFatal("Failed to open run store", err)
	}
	return store
}

// runsCmd focused on run history management.
//
// Note: runs subcommands use minimal initialization (runsSetup) instead of
// the full sharedSetup used by the report commands.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage report run history and exports",
	Long: `Manage the history of report runs.

Every daily, weekly and monthly run is tracked, storing:
- Run metadata (window, status, duration, stack count)
- The stack and dependency frequency maps the run produced

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run tracking statistics
  export  - Export run history to Parquet
  migrate - Run database schema migrations
  clear   - Remove all run history

Examples:
  # Check tracking status
  stackreport runs status

  # Export for analysis in pandas/DuckDB
  stackreport runs export --output-file history`,
}

// runsStatusCmd shows run tracking status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show the run store backend, number of runs, first and last run and table sizes.

Examples:
  stackreport runs status`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := openRunStore()
		defer func() { _ = store.Close() }()
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		rdb.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports run history to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet for BI tools and analytics",
	Long: `Export all stored run history to Parquet format.

Exports two datasets, named after --output-file:
- <prefix>.report_runs.parquet - metadata about each report run
- <prefix>.report_frequencies.parquet - per-run stack and dependency counts

Requires: --output-file parameter

Examples:
  # Export all data
  stackreport runs export --output-file history

  # Use with DuckDB for analysis
  duckdb -c "SELECT * FROM read_parquet('history.report_runs.parquet') LIMIT 10"`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := openRunStore()
		defer func() { _ = store.Close() }()
		if err := rdb.ExecuteRunExport(store, cfg.OutputFile, os.Stdout); err != nil {
			_ = store.Close()
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  stackreport runs migrate

  # Migrate to specific version
  stackreport runs migrate --target-version 1

  # Rollback to initial state
  stackreport runs migrate --target-version 0`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := rdb.MigrateRuns(cfg.RunBackend, cfg.RunDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all report run history",
	Long: `Drop the run tracking tables. Report documents are not touched.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  stackreport runs export --output-file backup
  stackreport runs clear`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := rdb.ClearRuns(cfg.RunBackend, cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}
