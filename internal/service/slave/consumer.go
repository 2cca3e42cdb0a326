package slave

import (
	"context"
	"errors"

	"github.com/oshokin/timesync/internal/clock"
	"github.com/oshokin/timesync/internal/domain/offset"
	"github.com/oshokin/timesync/internal/logger"
	"github.com/oshokin/timesync/internal/repository/snapshot"
)

// healthReporter is the part of the health server the consumer flips.
type healthReporter interface {
	SetServing(serving bool)
}

// consumer is the hosting side of the notification queue: it logs every
// notification, persists the latest offset and reports health.
type consumer struct {
	// nodeID identifies this slave in snapshots.
	nodeID string
	// clock stamps snapshots and the estimated master time.
	clock clock.Clock
	// repo stores the latest offset; nil disables snapshots.
	repo snapshot.Repository
	// health is switched to serving after the first offset; nil disables it.
	health healthReporter
}

// restore logs the offset persisted by a previous run. A missing snapshot is
// the normal first start; other failures are logged and ignored.
func (c *consumer) restore(ctx context.Context) {
	if c.repo == nil {
		return
	}

	previous, err := c.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			logger.WarnKV(ctx, "Load snapshot failed", "error", err)
		}

		return
	}

	logger.InfoKV(ctx, "Previous offset",
		"offset", previous.Offset.String(),
		"samples", previous.Samples,
		"updated_at", previous.UpdatedAt,
	)
}

// run drains notes until the slave closes the queue. It closes the consumer
// side on return so a stopped consumer never blocks the slave.
func (c *consumer) run(ctx context.Context, notes *Notifications) error {
	defer notes.Close()

	serving := false

	for note := range notes.C() {
		switch n := note.(type) {
		case ChangeOffset:
			c.changeOffset(ctx, n)

			if !serving && c.health != nil {
				c.health.SetServing(true)
				serving = true
			}
		case InvalidMessageSequence:
			logger.DebugKV(ctx, "Round discarded", "state", n.State, "message", n.Message.String())
		case InvalidMessageFormat:
			logger.DebugKV(ctx, "Datagram discarded", "error", n.Err)
		case IOError:
			logger.DebugKV(ctx, "Socket error", "error", n.Err)
		}
	}

	return nil
}

func (c *consumer) changeOffset(ctx context.Context, n ChangeOffset) {
	now := c.clock.Now()

	logger.InfoKV(ctx, "Offset changed",
		"offset", n.Offset.String(),
		"sample", n.Sample.String(),
		"samples", n.Samples,
		"master_time", n.Offset.Correct(now),
	)

	if c.repo == nil {
		return
	}

	err := c.repo.Save(ctx, &offset.Snapshot{
		NodeID:    c.nodeID,
		UpdatedAt: now,
		Offset:    n.Offset,
		Samples:   n.Samples,
	})
	if err != nil {
		logger.WarnKV(ctx, "Save snapshot failed", "error", err)
	}
}
