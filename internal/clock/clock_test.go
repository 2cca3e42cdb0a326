package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock time.Time

func (f fixedClock) Now() time.Time {
	return time.Time(f)
}

// TestSystem_UTC ensures the system clock reports UTC instants.
func TestSystem_UTC(t *testing.T) {
	t.Parallel()

	before := time.Now()
	now := System{}.Now()

	require.Equal(t, time.UTC, now.Location())
	require.False(t, now.Before(before.Add(-time.Second)))
}

// TestSkewed verifies the skew is applied on top of the base clock.
func TestSkewed(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Skewed{Base: fixedClock(base), Skew: -3 * time.Second}

	require.Equal(t, base.Add(-3*time.Second), c.Now())
}
