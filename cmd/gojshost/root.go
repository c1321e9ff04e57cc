package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "gojshost",
	Short:         "Runs GOARCH=wasm GOOS=js binaries under wazero",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level for host diagnostics: debug, info, warn, error.")
	rootCmd.AddCommand(runCmd, versionCmd)
}

// Execute runs the root command and returns the process exit code: the
// guest's own exit code when it ran, or 1 for a host-side failure such as a
// bad flag or a trap.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := err.(exitCodeError); ok {
			return int(code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// exitCodeError lets runCmd propagate a guest's exit code through cobra's
// single error-return RunE without cobra printing a spurious "Error:" line
// for a clean, non-zero guest exit.
type exitCodeError int32

func (exitCodeError) Error() string { return "" }

func newLogger() *logrus.Entry {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(lvl)
	return logrus.NewEntry(logger)
}
