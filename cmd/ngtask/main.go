// Command ngtask builds, releases and tests the ng-inspector extension.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nginspector/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ngtask",
	Short: "Build, release and test tasks for ng-inspector",
	Long: `ngtask drives the ng-inspector extension workflow.

Run without arguments to perform the default build (icons, js, css) for
every browser target.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	Args: cobra.NoArgs,
	RunE: runBuildTask,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.ngtask.yaml)")

	runTestsCmd.Flags().StringVar(&ngVersion, "ngversion", "", "Only test this framework version")
	runTestsCmd.Flags().BoolVar(&protractorOutput, "protractor-output", false, "Pass the test runner's output through")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of entries to show")
	historyCmd.Flags().StringVar(&historyVersion, "version", "", "Only show runs for this framework version")
	historyCmd.Flags().IntVar(&historyPurgeDays, "purge-days", 0, "Delete entries older than this many days first")

	for _, kind := range []string{"major", "minor", "patch"} {
		rootCmd.AddCommand(newBumpCmd(kind))
	}
	for _, task := range []string{"build:icons", "build:js", "build:css", "default"} {
		rootCmd.AddCommand(newBuildCmd(task))
	}
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(runTestsCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(cleanResultsCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
