package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("test.op", Settings{FailureThreshold: threshold, OpenTimeout: timeout}, WithClock(clock.now))
	return b, clock
}

var errUpstream = errors.New("upstream failed")

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	err := b.Do(context.Background(), succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errUpstream)
		assert.Equal(t, StateClosed, b.State())
	}

	assert.ErrorIs(t, b.Do(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	require.Equal(t, StateOpen, b.State())

	clock.advance(30 * time.Second) // still inside the cooldown

	invoked := false
	err := b.Do(ctx, func(context.Context) error {
		invoked = true
		return nil
	})

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.False(t, invoked)
	assert.Equal(t, "test.op", openErr.Key)
	assert.Equal(t, time.Minute, openErr.RetryAfter)
}

func TestBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clock.advance(time.Minute)

	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Snapshot().ConsecutiveFailures)
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	firstFailure := clock.now()

	clock.advance(time.Minute)
	require.ErrorIs(t, b.Do(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())
	assert.True(t, b.Snapshot().LastFailureTime.After(firstFailure))

	// Reopened: the cooldown starts over.
	var openErr *OpenError
	require.ErrorAs(t, b.Do(ctx, succeed), &openErr)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	require.Error(t, b.Do(ctx, fail))
	require.NoError(t, b.Do(ctx, succeed))

	// Two more failures should not trip the breaker after the reset.
	require.Error(t, b.Do(ctx, fail))
	require.Error(t, b.Do(ctx, fail))
	assert.Equal(t, StateClosed, b.State())

	require.Error(t, b.Do(ctx, fail))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenAllowsSingleTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clock.advance(time.Minute)

	release := make(chan struct{})
	trialStarted := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(trialStarted)
			<-release
			return nil
		})
	}()

	<-trialStarted

	// A second call while the trial is in flight is rejected.
	var openErr *OpenError
	require.ErrorAs(t, b.Do(ctx, succeed), &openErr)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ThresholdOfFiveMatchesDispatchProfile(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.Error(t, b.Do(ctx, fail))
	}
	assert.Equal(t, StateOpen, b.State())

	invoked := false
	_ = b.Do(ctx, func(context.Context) error {
		invoked = true
		return nil
	})
	assert.False(t, invoked, "6th call must not reach the wrapped function")
}
