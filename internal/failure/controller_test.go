package failure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestController_SuccessResetsStreak(t *testing.T) {
	t.Parallel()

	c := New(5, 4*time.Hour, zap.NewNop())
	for i := 0; i < 4; i++ {
		require.False(t, c.RecordFailure())
	}
	require.Equal(t, 4, c.ConsecutiveFailures())

	c.RecordSuccess()
	require.Zero(t, c.ConsecutiveFailures())
	require.Equal(t, Healthy, c.State())

	// A fresh streak is needed after the success.
	require.False(t, c.RecordFailure())
}

func TestController_ThresholdIssuesExactlyOneReset(t *testing.T) {
	t.Parallel()

	c := New(5, 4*time.Hour, zap.NewNop())
	resets := 0
	for i := 0; i < 5; i++ {
		if c.RecordFailure() {
			resets++
		}
	}
	require.Equal(t, 1, resets)
	require.Zero(t, c.ConsecutiveFailures(), "counter clears after the reset instruction")
	require.Equal(t, Healthy, c.State())
}

func TestController_NoEscalationAcrossCrossings(t *testing.T) {
	t.Parallel()

	c := New(3, 4*time.Hour, zap.NewNop())
	resets := 0
	for i := 0; i < 9; i++ {
		if c.RecordFailure() {
			resets++
		}
	}
	// One reset per full streak, not a growing backoff.
	require.Equal(t, 3, resets)
}

func TestController_ScheduledReset(t *testing.T) {
	t.Parallel()

	c := New(5, 4*time.Hour, zap.NewNop())
	require.False(t, c.ShouldScheduledReset(4*time.Hour))
	require.True(t, c.ShouldScheduledReset(4*time.Hour+time.Second))
}

func TestController_Defaults(t *testing.T) {
	t.Parallel()

	c := New(0, 0, zap.NewNop())
	for i := 0; i < 4; i++ {
		require.False(t, c.RecordFailure())
	}
	require.True(t, c.RecordFailure())
	require.True(t, c.ShouldScheduledReset(5*time.Hour))
}
