package protocol

import (
	"strconv"
	"time"
)

// Kind tags a datagram on the wire.
type Kind uint8

const (
	// KindSync announces that a FollowUp with the send time follows.
	KindSync Kind = 1
	// KindFollowUp carries the master time at which Sync was sent.
	KindFollowUp Kind = 2
	// KindDelayResp carries the master time at which DelayReq arrived.
	KindDelayResp Kind = 3
	// KindDelayReq is the slave's delay request.
	KindDelayReq Kind = 16
)

// String returns the message name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "Sync"
	case KindFollowUp:
		return "FollowUp"
	case KindDelayResp:
		return "DelayResp"
	case KindDelayReq:
		return "DelayReq"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Message is any datagram of the protocol.
type Message interface {
	Kind() Kind
}

// MasterMessage is a datagram sent by the master.
type MasterMessage interface {
	Message
	masterMessage()
}

// SlaveMessage is a datagram sent by a slave.
type SlaveMessage interface {
	Message
	slaveMessage()
}

// Sync opens a round.
type Sync struct{}

// FollowUp reports when the preceding Sync left the master.
type FollowUp struct {
	// Origin is the master time captured right after Sync was sent (t1).
	Origin time.Time
}

// DelayResp answers a DelayReq.
type DelayResp struct {
	// Receipt is the master time at which the DelayReq was received (t2').
	Receipt time.Time
}

// DelayReq asks the master for its receive timestamp.
type DelayReq struct{}

// Kind implements Message.
func (Sync) Kind() Kind { return KindSync }

// Kind implements Message.
func (FollowUp) Kind() Kind { return KindFollowUp }

// Kind implements Message.
func (DelayResp) Kind() Kind { return KindDelayResp }

// Kind implements Message.
func (DelayReq) Kind() Kind { return KindDelayReq }

func (Sync) masterMessage()      {}
func (FollowUp) masterMessage()  {}
func (DelayResp) masterMessage() {}
func (DelayReq) slaveMessage()   {}
