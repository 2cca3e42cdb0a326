package offset

import "time"

// Snapshot is the latest smoothed estimate published by a slave.
type Snapshot struct {
	// NodeID identifies the slave process that produced the estimate.
	NodeID string
	// UpdatedAt is the local time of the round that produced the estimate.
	UpdatedAt time.Time
	// Offset is the windowed mean offset of the local clock.
	Offset TimeOffset
	// Samples is the number of samples the mean was computed from.
	Samples int
}
