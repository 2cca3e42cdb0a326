package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/timesync/internal/service/master"
)

// masterCmd runs the time reference.
var masterCmd = &cobra.Command{
	Use:   "master [bind-address] [target-address]",
	Short: "Broadcast the reference clock.",
	Long: `Binds the master socket, broadcasts a Sync/FollowUp pair every sync period to the
target address and answers DelayReq messages from slaves.

Addresses given as arguments override the config file
(defaults 0.0.0.0:13000 and 255.255.255.255:13001).`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signalContext()
		defer stop()

		return master.Run(ctx, &master.Options{
			ConfigPath:    configPath,
			BindAddress:   argument(args, 0),
			TargetAddress: argument(args, 1),
			LogLevel:      logLevel,
		})
	},
}
