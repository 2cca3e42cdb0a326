package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/timesync/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command of the timesync binary.
	rootCmd = &cobra.Command{
		Use:   "timesync",
		Short: "Synchronize clocks over UDP broadcast.",
		Long: `Timesync estimates the offset between the clock of a master and the clocks of
slaves on the same subnet.

The master broadcasts Sync and FollowUp beacons and answers DelayReq messages.
Each slave measures the offset to the master and logs the smoothed value.
The log level is taken from --log-level, then TIMESYNC_LOG_LEVEL, then the config file.`,
		SilenceUsage: true,
	}
)

// Execute runs the timesync CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// argument returns args[i] or an empty string.
func argument(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}

	return ""
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(masterCmd, slaveCmd, healthCmd)
}
