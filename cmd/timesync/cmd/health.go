package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/timesync/internal/api/grpc/health"
)

var (
	// healthService is the service name checked by the health command.
	healthService string
	// healthTimeout bounds the health check.
	healthTimeout time.Duration

	// errNotServing is returned when the checked service is not SERVING.
	errNotServing = errors.New("not serving")

	// healthCmd queries the health endpoint of a running master or slave.
	healthCmd = &cobra.Command{
		Use:   "health <address>",
		Short: "Check the health endpoint of a running master or slave.",
		Long: `Queries the gRPC health service at address and exits with a non-zero status
unless the service is SERVING. A slave becomes SERVING after its first
completed round, a master as soon as its socket is bound.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			client, err := health.Dial(args[0], health.WithCallTimeout(healthTimeout))
			if err != nil {
				return err
			}

			defer client.Close()

			serving, err := client.Serving(ctx, healthService)
			if err != nil {
				return err
			}

			if !serving {
				return fmt.Errorf("%s: %w", args[0], errNotServing)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "SERVING")

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	healthCmd.Flags().StringVar(&healthService, "service", "", "service name, e.g. timesync.Slave (empty checks the server)")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", health.DefaultCallTimeout, "check timeout")
}
