package slave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/timesync/internal/api/grpc/health"
	"github.com/oshokin/timesync/internal/clock"
	"github.com/oshokin/timesync/internal/config"
	"github.com/oshokin/timesync/internal/logger"
	"github.com/oshokin/timesync/internal/repository/snapshot"
	"github.com/oshokin/timesync/internal/transport"
)

// Options controls the timesync slave process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// BindAddress overrides the configured local address.
	BindAddress string
	// SnapshotFile overrides the configured snapshot path.
	SnapshotFile string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Run binds the slave socket, follows the master and logs every offset
// change until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "timesync-slave")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger.SetLevel(logger.ResolveLevel(opts.LogLevel, settings.LogLevel))

	// Command line arguments override the configuration.
	slave := settings.Slave
	if opts.BindAddress != "" {
		slave.BindAddress = opts.BindAddress
	}

	if opts.SnapshotFile != "" {
		slave.SnapshotFile = opts.SnapshotFile
	}

	nodeID := uuid.NewString()
	ctx = logger.WithKV(ctx, "node_id", nodeID)

	conn, err := transport.Listen(ctx, slave.BindAddress, transport.Options{ReusePort: slave.ReusePort})
	if err != nil {
		return err
	}

	defer conn.Close()

	s, notes := New(conn, Config{
		MeanWindow:    slave.MeanWindow,
		NotifyBuffer:  slave.NotifyBuffer,
		ReceiveBuffer: slave.ReceiveBuffer,
	})

	c := &consumer{
		nodeID: nodeID,
		clock:  clock.System{},
	}

	if slave.SnapshotFile != "" {
		c.repo = snapshot.NewFileRepository(slave.SnapshotFile)
	}

	c.restore(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if slave.HealthAddress != "" {
		hs := health.NewServer(health.SlaveService)
		c.health = hs

		g.Go(func() error {
			return hs.ListenAndServe(gctx, slave.HealthAddress)
		})
	}

	g.Go(func() error {
		return s.Serve(gctx)
	})

	g.Go(func() error {
		return c.run(gctx, notes)
	})

	return g.Wait()
}
