package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/schema"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// logger is built once the log level is known.
var logger = logx.New(os.Stderr, log.InfoLevel)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "stackreport",
	Short: "Aggregate dependency-analysis results into periodic stack reports.",
	Long: `Stackreport turns stack-analysis worker results into daily, weekly and monthly reports:
dependency and stack frequencies, trending lists, CVE and license statistics, ingestion
accuracy and the collated training data for the recommendation models.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in the .env file, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine; deployments set the environment directly
	_ = godotenv.Load()

	setConfigFile()

	viper.SetEnvPrefix("STACKREPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("report-scope", schema.DefaultScope)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("source-backend", schema.PostgreSQLBackend)
	viper.SetDefault("run-backend", schema.SQLiteBackend)
	viper.SetDefault("object-backend", schema.SQLObjects)
	viper.SetDefault("top-stacks", contract.DefaultTopStacks)
	viper.SetDefault("top-deps", contract.DefaultTopDeps)
	viper.SetDefault("graph-batch-size", contract.DefaultGraphBatchSize)
	viper.SetDefault("keep-meta-days", contract.DefaultKeepMetaDays)
	viper.SetDefault("keep-worker-result-days", contract.DefaultKeepWorkerResultDays)
	viper.SetDefault("http-retries", contract.DefaultHTTPRetries)
	viper.SetDefault("http-backoff", contract.DefaultHTTPBackoff.String())
	viper.SetDefault("http-timeout", contract.DefaultHTTPTimeout.String())
	viper.SetDefault("registry-rps", contract.DefaultRegistryRPS)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("frequency", schema.Daily)
	viper.SetDefault("color", "yes")
}

// setConfigFile points viper at --config or the default .stackreport.yaml locations.
func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".stackreport")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// loadConfigFile reads the config file if present.
func loadConfigFile() error {
	setConfigFile()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// sharedSetup unmarshals config, runs validation and configures logging.
func sharedSetup(_ *cobra.Command, _ []string) error {
	return setup(contract.ProcessAndValidate)
}

// readerSetup is sharedSetup for commands that only read persisted reports
// and therefore do not need the analytics database.
func readerSetup(_ *cobra.Command, _ []string) error {
	return setup(contract.ProcessForReading)
}

func setup(process func(*contract.Config, *contract.ConfigRawInput) error) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing.
	if err := process(cfg, input); err != nil {
		return err
	}

	level, err := logx.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = logx.New(os.Stderr, level)
	rootCtx = logx.WithLogger(rootCtx, logger)

	if !cfg.UseColors {
		color.NoColor = true
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
