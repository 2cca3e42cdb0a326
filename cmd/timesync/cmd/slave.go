package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/timesync/internal/service/slave"
)

// snapshotFile overrides the configured snapshot path.
var snapshotFile string

// slaveCmd follows a master.
var slaveCmd = &cobra.Command{
	Use:   "slave [bind-address]",
	Short: "Follow the master clock and log the offset.",
	Long: `Binds the slave socket (default 0.0.0.0:13001), answers each beacon with a
DelayReq and logs the smoothed offset to the master after every completed round.

With --snapshot-file the latest offset is also written to a JSON file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signalContext()
		defer stop()

		return slave.Run(ctx, &slave.Options{
			ConfigPath:   configPath,
			BindAddress:  argument(args, 0),
			SnapshotFile: snapshotFile,
			LogLevel:     logLevel,
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	slaveCmd.Flags().StringVarP(&snapshotFile, "snapshot-file", "s", "", "path to write the latest offset as JSON")
}
