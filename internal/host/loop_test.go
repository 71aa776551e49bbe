package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(Config{
		Interval: 5 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_TicksSubscribersInOrder(t *testing.T) {
	l := newTestLoop(t)

	var order []string
	l.Subscribe(func() { order = append(order, "a") })
	l.Subscribe(func() { order = append(order, "b") })
	l.Start()

	var snapshot []string
	require.Eventually(t, func() bool {
		_ = l.Call(context.Background(), func() error {
			snapshot = append([]string(nil), order...)
			return nil
		})
		return len(snapshot) >= 4
	}, time.Second, 5*time.Millisecond)

	for i := 0; i+1 < len(snapshot); i += 2 {
		assert.Equal(t, []string{"a", "b"}, snapshot[i:i+2])
	}
	assert.Positive(t, l.Ticks())
}

func TestLoop_UnsubscribeDuringTick(t *testing.T) {
	l := newTestLoop(t)

	var first, second atomic.Int32
	var unsubscribeSecond func()
	l.Subscribe(func() {
		first.Add(1)
		unsubscribeSecond()
	})
	unsubscribeSecond = l.Subscribe(func() { second.Add(1) })
	require.Equal(t, 2, l.Subscribers())

	l.Start()

	require.Eventually(t, func() bool { return first.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, second.Load())
	assert.Equal(t, 1, l.Subscribers())
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l := newTestLoop(t)

	var after atomic.Int32
	l.Subscribe(func() { panic("boom") })
	l.Subscribe(func() { after.Add(1) })
	l.Start()

	require.Eventually(t, func() bool { return after.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, l.IsRunning())
}

func TestLoop_Call(t *testing.T) {
	l := newTestLoop(t)
	l.Start()

	want := errors.New("rejected")
	assert.ErrorIs(t, l.Call(context.Background(), func() error { return want }), want)

	err := l.Call(context.Background(), func() error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLoop_CallContextCanceled(t *testing.T) {
	l := newTestLoop(t)
	// not started: the posted work is never picked up

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_Stop(t *testing.T) {
	l := newTestLoop(t)
	l.Start()
	require.True(t, l.IsRunning())

	require.NoError(t, l.StopContext(context.Background()))
	assert.False(t, l.IsRunning())
	assert.NotPanics(t, l.Stop)

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() error { return nil }), ErrStopped)

	l.Start()
	assert.False(t, l.IsRunning(), "a stopped loop cannot be restarted")
}

func TestLoop_StopWithoutStart(t *testing.T) {
	l := newTestLoop(t)

	assert.NotPanics(t, l.Stop)
	assert.False(t, l.IsRunning())
}

func TestLoop_CronFeed(t *testing.T) {
	l := newTestLoop(t)

	var fired atomic.Int32
	id, err := l.AddCronFeed("probe", "@every 1s", func() { fired.Add(1) })
	require.NoError(t, err)

	l.Start()

	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	next, ok := l.NextFeedRun(id)
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	assert.True(t, l.RemoveCronFeed(id))
	assert.False(t, l.RemoveCronFeed(id))
	_, ok = l.NextFeedRun(id)
	assert.False(t, ok)

	_, err = l.AddCronFeed("bad", "every day", func() {})
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"*/5 * * * *", "0 */5 * * * *", "@hourly", "@every 30s"} {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}
	_, err := ParseSchedule("every day")
	assert.Error(t, err)
}
