package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/env"
	"github.com/abdul-hamid-achik/snot/packages/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	envFileFlag string
	verboseFlag int // 0=off, 1=-v, 2=-vv
	quietFlag   bool
	logJSONFlag bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "snot",
	Short: "Go test results, filed in Slick.",
	Long: `snot runs Go tests and files every test as a result in a Slick
test-management server. The doc comment of a test becomes its test case:
title, purpose, steps, expected results, tags and requirements.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", getEnvString("SNOT_CONFIG", ""), "Path to config file (env: SNOT_CONFIG)")
	pf.StringVar(&envFileFlag, "env-file", getEnvString("SNOT_ENV_FILE", ""), "Path to .env file exported before the run (env: SNOT_ENV_FILE)")
	pf.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for details, -vv for debug logs)")
	pf.BoolVarP(&quietFlag, "quiet", "q", getEnvBool("SNOT_QUIET", false), "Only log errors (env: SNOT_QUIET)")
	pf.BoolVar(&logJSONFlag, "log-json", getEnvBool("SNOT_LOG_JSON", false), "Log as JSON (env: SNOT_LOG_JSON)")
	pf.BoolVar(&noColorFlag, "no-color", getEnvBool("SNOT_NO_COLOR", false), "Disable colored output (env: SNOT_NO_COLOR)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if envFileFlag != "" {
		if _, err := env.LoadAndExportDotEnv(envFileFlag); err != nil {
			return withCode(ExitConfigError, fmt.Errorf("cannot load env file: %w", err))
		}
	}
	logging.Setup(verboseFlag > 1, quietFlag, logJSONFlag)
	return nil
}
