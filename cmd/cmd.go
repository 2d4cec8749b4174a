// Package cmd defines the command-line interface for stackreport.
package cmd

import (
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(monthlyCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)
	runsCmd.AddCommand(runsClearCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("date", "", "Run as if today were this date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().String("report-scope", schema.DefaultScope, "Key prefix of stack reports in the report bucket")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("source-backend", string(schema.PostgreSQLBackend), "Analytics database backend: postgresql or mysql or sqlite")
	rootCmd.PersistentFlags().String("source-db-connect", "", "Analytics database connection string (e.g., host=localhost port=5432 user=... dbname=...)")
	rootCmd.PersistentFlags().String("run-backend", string(schema.SQLiteBackend), "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("run-db-connect", "", "Run tracking database connection string (must differ from source-db-connect)")
	rootCmd.PersistentFlags().String("object-backend", string(schema.SQLObjects), "Report document store: sql or gcs or none")
	rootCmd.PersistentFlags().String("report-bucket", "", "Bucket holding report documents")
	rootCmd.PersistentFlags().String("gcs-credentials-file", "", "Service account file for the gcs object backend")
	rootCmd.PersistentFlags().String("worker-kind", string(schema.StackAggregatorV2), "Worker results to aggregate: stack_aggregator_v2 or stack_aggregator")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to (file prefix for runs export)")
	rootCmd.PersistentFlags().String("pushgateway-url", "", "Prometheus pushgateway to receive run metrics")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of weeklyCmd to Viper
	weeklyCmd.Flags().Bool("retrain", false, "Export training data and retrain the recommendation models")
	if err := viper.BindPFlags(weeklyCmd.Flags()); err != nil {
		contract.LogFatal("Error binding weekly flags", err)
	}

	// Bind all flags of showCmd to Viper
	showCmd.Flags().String("frequency", string(schema.Daily), "Report frequency: daily or weekly or monthly")
	showCmd.Flags().String("name", "", "Report name (defaults to the latest window for the frequency)")
	showCmd.Flags().Bool("ingestion", false, "Show the ingestion report instead of the stack report")
	showCmd.Flags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	showCmd.Flags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	showCmd.Flags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	if err := viper.BindPFlags(showCmd.Flags()); err != nil {
		contract.LogFatal("Error binding show flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
