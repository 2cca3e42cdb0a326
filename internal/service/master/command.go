package master

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/timesync/internal/api/grpc/health"
	"github.com/oshokin/timesync/internal/config"
	"github.com/oshokin/timesync/internal/discovery"
	"github.com/oshokin/timesync/internal/logger"
	"github.com/oshokin/timesync/internal/transport"
)

// Options controls the timesync master process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// BindAddress overrides the configured local address.
	BindAddress string
	// TargetAddress overrides the configured beacon destination.
	TargetAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Run binds the master socket and serves until ctx is canceled.
// Optional health and mDNS endpoints run alongside and stop with it.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "timesync-master")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger.SetLevel(logger.ResolveLevel(opts.LogLevel, settings.LogLevel))

	// Command line arguments override the configuration.
	master := settings.Master
	if opts.BindAddress != "" {
		master.BindAddress = opts.BindAddress
	}

	if opts.TargetAddress != "" {
		master.TargetAddress = opts.TargetAddress
	}

	target, err := transport.ResolveTarget(master.TargetAddress)
	if err != nil {
		return err
	}

	nodeID := uuid.NewString()
	ctx = logger.WithKV(ctx, "node_id", nodeID)

	conn, err := transport.Listen(ctx, master.BindAddress, transport.Options{})
	if err != nil {
		return err
	}

	defer conn.Close()

	m := New(conn, Config{
		Target:        target,
		SyncPeriod:    master.SyncPeriod,
		ReceiveBuffer: master.ReceiveBuffer,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.Serve(gctx)
	})

	if master.HealthAddress != "" {
		hs := health.NewServer(health.MasterService)
		hs.SetServing(true)

		g.Go(func() error {
			return hs.ListenAndServe(gctx, master.HealthAddress)
		})
	}

	if master.Advertise {
		advertised := discovery.Config{
			Instance: master.Instance,
			Port:     localPort(conn.LocalAddr()),
			Target:   target.String(),
			NodeID:   nodeID,
		}

		g.Go(func() error {
			return discovery.Advertise(gctx, advertised)
		})
	}

	return g.Wait()
}

// localPort extracts the port of a bound UDP socket.
func localPort(addr net.Addr) int {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.Port
	}

	return 0
}
