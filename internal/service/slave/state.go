package slave

import (
	"time"

	"github.com/oshokin/timesync/internal/domain/offset"
)

// state is one of cleared, syncReceived or followUpReceived.
// Each variant carries only the timestamps collected so far in the round.
type state interface {
	name() string
}

// cleared waits for a Sync.
type cleared struct{}

// syncReceived waits for the FollowUp carrying the master send time.
type syncReceived struct {
	// localSync is the local time at which Sync arrived (t1_).
	localSync time.Time
}

// followUpReceived waits for the DelayResp answering our DelayReq.
type followUpReceived struct {
	// localSync is the local time at which Sync arrived (t1_).
	localSync time.Time
	// remoteSync is the master time at which Sync was sent (t1).
	remoteSync time.Time
	// localDelayReq is the local time at which DelayReq was sent (t2).
	localDelayReq time.Time
}

func (cleared) name() string          { return "Cleared" }
func (syncReceived) name() string     { return "SyncReceived" }
func (followUpReceived) name() string { return "FollowUpReceived" }

// estimate completes the round with the master receive time of DelayReq (t2').
// The sample is the first diff plus half of the second one.
//
// With local = master + S and a symmetric one-way delay d, the first diff is
// S + d and the second is S - d, so a round yields 1.5*S + d/2.
func (f followUpReceived) estimate(remoteDelayReq time.Time) offset.TimeOffset {
	syncDiff := offset.Diff(f.localSync, f.remoteSync)
	delayDiff := offset.Diff(f.localDelayReq, remoteDelayReq)

	return syncDiff.Add(delayDiff.Div(2))
}
