package slave

import (
	"context"
	"errors"
	"sync"

	"github.com/oshokin/timesync/internal/domain/offset"
	"github.com/oshokin/timesync/internal/protocol"
)

// DefaultNotifyBuffer is the notification queue capacity used when none is configured.
const DefaultNotifyBuffer = 1024

// ErrConsumerClosed is returned by Serve after the consumer closed the notification queue.
var ErrConsumerClosed = errors.New("notification consumer closed")

// Notification is an event published by the slave.
type Notification interface {
	notification()
}

// ChangeOffset carries a new smoothed offset after a completed round.
type ChangeOffset struct {
	// Offset is the mean of the window, the value consumers should apply.
	Offset offset.TimeOffset
	// Sample is the raw offset measured by the round.
	Sample offset.TimeOffset
	// Samples is the number of samples in the window.
	Samples int
}

// InvalidMessageSequence reports a message that did not fit the current state.
// The round was discarded.
type InvalidMessageSequence struct {
	// State is the state the slave was in when the message arrived.
	State string
	// Message is the kind of the offending message.
	Message protocol.Kind
}

// InvalidMessageFormat reports a datagram that could not be decoded.
type InvalidMessageFormat struct {
	// Err is the decode error.
	Err error
}

// IOError reports a failed socket operation.
type IOError struct {
	// Err is the socket error.
	Err error
}

func (ChangeOffset) notification()           {}
func (InvalidMessageSequence) notification() {}
func (InvalidMessageFormat) notification()   {}
func (IOError) notification()                {}

// Notifications is a bounded, ordered queue between the slave and one consumer.
//
// The slave blocks while the queue is full. The consumer reads from C and calls
// Close when it stops reading; C is closed once Serve returns.
type Notifications struct {
	// ch buffers notifications in generation order.
	ch chan Notification
	// done is closed by the consumer.
	done chan struct{}
	// closeOnce guards done.
	closeOnce sync.Once
}

func newNotifications(capacity int) *Notifications {
	if capacity < 1 {
		capacity = DefaultNotifyBuffer
	}

	return &Notifications{
		ch:   make(chan Notification, capacity),
		done: make(chan struct{}),
	}
}

// C returns the receive side of the queue.
func (n *Notifications) C() <-chan Notification {
	return n.ch
}

// Close tells the slave that nobody reads the queue anymore.
func (n *Notifications) Close() {
	n.closeOnce.Do(func() {
		close(n.done)
	})
}

// send blocks until the notification is queued, the consumer is gone or ctx ends.
func (n *Notifications) send(ctx context.Context, note Notification) error {
	select {
	case <-n.done:
		return ErrConsumerClosed
	default:
	}

	select {
	case n.ch <- note:
		return nil
	case <-n.done:
		return ErrConsumerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish closes the receive side after the producer stopped.
func (n *Notifications) finish() {
	close(n.ch)
}
