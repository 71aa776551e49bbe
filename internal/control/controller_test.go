package control_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neotask/internal/control"
	"neotask/internal/host"
	"neotask/internal/journal"
	"neotask/internal/platform/httpclient"
	"neotask/internal/shared"
	"neotask/internal/taskmanager"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRuns struct {
	runs []journal.Run
}

func (f *fakeRuns) Get(_ context.Context, id string) (journal.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return journal.Run{}, shared.ErrNotFound
}

func (f *fakeRuns) List(context.Context, journal.Filter) ([]journal.Run, error) { return f.runs, nil }

func (f *fakeRuns) Counts(context.Context) (map[string]int, error) {
	return map[string]int{"succeeded": len(f.runs)}, nil
}

func newController(t *testing.T, opts ...control.Option) (*control.Controller, *host.Loop) {
	t.Helper()
	loop := host.New(host.Config{Interval: 5 * time.Millisecond, Logger: discard})
	mgr, err := taskmanager.New(loop, taskmanager.WithLabel("test"), taskmanager.WithLogger(discard))
	require.NoError(t, err)
	loop.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = loop.StopContext(ctx)
	})
	opts = append([]control.Option{control.WithLogger(discard)}, opts...)
	return control.New(loop, mgr, opts...), loop
}

func TestController_DelayAndSnapshot(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	info, err := c.EnqueueDelay(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "delay 1h0m0s", info.Name)

	require.Eventually(t, func() bool {
		s, err := c.Snapshot(ctx)
		return err == nil && s.Current != nil && s.Current.ID == info.ID
	}, time.Second, 5*time.Millisecond)

	skipped, err := c.AbortCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.ID, skipped.ID)

	s, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, s.Busy)
	assert.Equal(t, "test", s.Label)
}

func TestController_AbortCurrentWhenIdle(t *testing.T) {
	c, _ := newController(t)

	_, err := c.AbortCurrent(context.Background())
	require.ErrorIs(t, err, control.ErrIdle)
	assert.True(t, shared.IsConflict(err))
}

func TestController_Abort(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	for range 3 {
		_, err := c.EnqueueDelay(ctx, time.Hour)
		require.NoError(t, err)
	}
	require.NoError(t, c.Abort(ctx))

	s, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, s.Busy)
	assert.Empty(t, s.Pending)
}

func TestController_EnqueueDelayValidation(t *testing.T) {
	c, _ := newController(t)

	_, err := c.EnqueueDelay(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestController_StepMode(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	_, err := c.Step(ctx)
	require.ErrorIs(t, err, taskmanager.ErrNotInStepMode)
	assert.True(t, shared.IsConflict(err))

	require.NoError(t, c.SetStepMode(ctx, true))
	info, err := c.EnqueueDelay(ctx, time.Hour)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	s, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, s.StepMode)
	assert.Nil(t, s.Current, "no automatic ticks in step mode")

	s, err = c.Step(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Current)
	assert.Equal(t, info.ID, s.Current.ID)
	assert.Equal(t, 1, s.Current.Ticks)

	require.NoError(t, c.SetStepMode(ctx, false))
}

func TestController_UpdateDefaults(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	s, err := c.UpdateDefaults(ctx, taskmanager.Overrides{
		TimeLimit:    taskmanager.Ptr(5 * time.Second),
		AbortOnError: taskmanager.Ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.TimeLimit)
	assert.False(t, s.AbortOnError)
	assert.True(t, s.AbortOnTimeout, "unset fields keep their value")

	_, err = c.UpdateDefaults(ctx, taskmanager.Overrides{TimeLimit: taskmanager.Ptr(time.Duration(0))})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, snap.Defaults.TimeLimit, "rejected update leaves defaults alone")
}

func TestController_EnqueueProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newController(t, control.WithProber(httpclient.New(httpclient.WithLogger(discard))))
	ctx := context.Background()

	info, err := c.EnqueueProbe(ctx, control.ProbeRequest{URL: srv.URL, TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "probe "+srv.URL, info.Name)

	require.Eventually(t, func() bool {
		s, err := c.Snapshot(ctx)
		return err == nil && !s.Busy
	}, 2*time.Second, 5*time.Millisecond)

	_, err = c.EnqueueProbe(ctx, control.ProbeRequest{URL: "not a url"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestController_ProbesDisabled(t *testing.T) {
	c, _ := newController(t)

	_, err := c.EnqueueProbe(context.Background(), control.ProbeRequest{URL: "http://example.com"})
	require.ErrorIs(t, err, control.ErrNoProber)

	_, err = c.ScheduleProbes("@every 1m", []string{"http://example.com"})
	require.ErrorIs(t, err, control.ErrNoProber)
}

func TestController_ScheduleProbesValidation(t *testing.T) {
	c, _ := newController(t, control.WithProber(httpclient.New(httpclient.WithLogger(discard))))

	_, err := c.ScheduleProbes("@every 1m", nil)
	assert.True(t, shared.IsValidation(err))

	_, err = c.ScheduleProbes("not a schedule", []string{"http://example.com"})
	assert.Error(t, err)

	id, err := c.ScheduleProbes("@every 1m", []string{"http://example.com"})
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestController_Runs(t *testing.T) {
	ctx := context.Background()

	t.Run("no journal", func(t *testing.T) {
		c, _ := newController(t)
		_, err := c.Runs(ctx, journal.Filter{})
		assert.True(t, shared.IsNotFound(err))
		_, err = c.RunCounts(ctx)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("with journal", func(t *testing.T) {
		store := &fakeRuns{runs: []journal.Run{{ID: "r1", TaskName: "probe"}}}
		c, _ := newController(t, control.WithRuns(store))

		runs, err := c.Runs(ctx, journal.Filter{})
		require.NoError(t, err)
		assert.Len(t, runs, 1)

		r, err := c.Run(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "probe", r.TaskName)

		_, err = c.Run(ctx, "missing")
		assert.True(t, shared.IsNotFound(err))

		counts, err := c.RunCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts["succeeded"])
	})
}

func TestController_StoppedLoop(t *testing.T) {
	c, loop := newController(t)
	loop.Stop()

	_, err := c.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
	assert.ErrorIs(t, err, host.ErrStopped)
}
