package offset

import (
	"fmt"
	"time"
)

// Direction tells on which side of the base instant a sample lies.
type Direction uint8

const (
	// DirectionLater means the sample follows the base instant.
	DirectionLater Direction = iota
	// DirectionEarlier means the sample precedes the base instant.
	DirectionEarlier
)

// String returns the diagnostic prefix of the direction.
func (d Direction) String() string {
	if d == DirectionEarlier {
		return "Early"
	}

	return "Later"
}

// TimeOffset is a signed difference between two instants stored as a direction
// tag and a non-negative magnitude.
//
// The zero value is the canonical zero offset Later(0). Every zero magnitude is
// normalized to Later(0), so two offsets are equal exactly when == says so.
type TimeOffset struct {
	// direction is the sign tag of the offset.
	direction Direction
	// magnitude is the absolute size of the offset, never negative.
	magnitude time.Duration
}

// Zero is the identity element of Add.
//
//nolint:gochecknoglobals // Immutable value used as the additive identity.
var Zero = TimeOffset{}

// Later builds an offset whose sample follows the base by d.
// It panics when d is negative.
func Later(d time.Duration) TimeOffset {
	return newOffset(DirectionLater, d)
}

// Earlier builds an offset whose sample precedes the base by d.
// It panics when d is negative.
func Earlier(d time.Duration) TimeOffset {
	return newOffset(DirectionEarlier, d)
}

func newOffset(direction Direction, d time.Duration) TimeOffset {
	if d < 0 {
		panic(fmt.Sprintf("offset: negative magnitude %s", d))
	}

	if d == 0 {
		return Zero
	}

	return TimeOffset{
		direction: direction,
		magnitude: d,
	}
}

// Diff compares sample against base. If sample precedes base the result is
// Later(base - sample), otherwise Earlier(sample - base).
// Equal instants yield the zero offset.
func Diff(base, sample time.Time) TimeOffset {
	if sample.Before(base) {
		return Later(base.Sub(sample))
	}

	return Earlier(sample.Sub(base))
}

// Direction returns the sign tag of the offset.
func (o TimeOffset) Direction() Direction {
	return o.direction
}

// Magnitude returns the absolute size of the offset.
func (o TimeOffset) Magnitude() time.Duration {
	return o.magnitude
}

// IsEarlier reports whether the offset carries the Earlier tag.
func (o TimeOffset) IsEarlier() bool {
	return o.direction == DirectionEarlier
}

// IsZero reports whether the offset has zero magnitude.
func (o TimeOffset) IsZero() bool {
	return o.magnitude == 0
}

// Add combines two offsets. Same-sign operands add magnitudes; opposite-sign
// operands subtract the smaller magnitude from the larger and keep the sign of
// the larger one.
func (o TimeOffset) Add(other TimeOffset) TimeOffset {
	if o.direction == other.direction {
		return newOffset(o.direction, o.magnitude+other.magnitude)
	}

	if o.magnitude > other.magnitude {
		return newOffset(o.direction, o.magnitude-other.magnitude)
	}

	return newOffset(other.direction, other.magnitude-o.magnitude)
}

// Negate flips the direction and keeps the magnitude.
func (o TimeOffset) Negate() TimeOffset {
	if o.direction == DirectionEarlier {
		return newOffset(DirectionLater, o.magnitude)
	}

	return newOffset(DirectionEarlier, o.magnitude)
}

// Sub returns o + (-other).
func (o TimeOffset) Sub(other TimeOffset) TimeOffset {
	return o.Add(other.Negate())
}

// Div divides the magnitude by |n| and negates the result when n is negative.
// Calling it with n == 0 is a programming error and panics.
func (o TimeOffset) Div(n int) TimeOffset {
	if n == 0 {
		panic("offset: division by zero")
	}

	// |n| as unsigned so that math.MinInt does not overflow.
	divisor := uint64(n)
	if n < 0 {
		divisor = uint64(-(n + 1)) + 1
	}

	result := newOffset(o.direction, time.Duration(uint64(o.magnitude)/divisor))
	if n < 0 {
		return result.Negate()
	}

	return result
}

// Correct applies the offset to an instant: Earlier advances it, Later retards
// it. Applied to a local timestamp it yields an estimate of the reference time.
func (o TimeOffset) Correct(t time.Time) time.Time {
	if o.direction == DirectionEarlier {
		return t.Add(o.magnitude)
	}

	return t.Add(-o.magnitude)
}

// Duration returns the offset as a signed duration where Later is positive.
// It is meant for logs and serialized snapshots, not for arithmetic.
func (o TimeOffset) Duration() time.Duration {
	if o.direction == DirectionEarlier {
		return -o.magnitude
	}

	return o.magnitude
}

// String renders the offset as Early(<duration>) or Later(<duration>).
func (o TimeOffset) String() string {
	return o.direction.String() + "(" + o.magnitude.String() + ")"
}
