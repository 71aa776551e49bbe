package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neotask/internal/platform/httpclient"
	"neotask/internal/shared"
	"neotask/internal/taskmanager"
	"neotask/internal/tasks"
)

// poll ticks the task function until it stops returning Continue without an error.
func poll(t *testing.T, task *taskmanager.Task) (taskmanager.Result, error) {
	t.Helper()
	var (
		res taskmanager.Result
		err error
	)
	require.Eventually(t, func() bool {
		res, err = task.Func()
		return err != nil || res != taskmanager.Continue
	}, 2*time.Second, 5*time.Millisecond)
	return res, err
}

func TestAsync_Succeeds(t *testing.T) {
	release := make(chan struct{})
	task := tasks.Async(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	}, taskmanager.WithName("wait"))

	res, err := task.Func()
	require.NoError(t, err)
	assert.Equal(t, taskmanager.Continue, res)

	close(release)
	res, err = poll(t, task)
	require.NoError(t, err)
	assert.Equal(t, taskmanager.Succeeded, res)
	assert.Equal(t, "wait", task.Name)
}

func TestAsync_ErrorIsStable(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	task := tasks.Async(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	_, err := poll(t, task)
	require.ErrorIs(t, err, boom)

	// an exception hook may keep the task current; it must keep reporting the same error
	res, err := task.Func()
	assert.Equal(t, taskmanager.Continue, res)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestAsync_Panic(t *testing.T) {
	task := tasks.Async(context.Background(), func(ctx context.Context) error {
		panic("kaboom")
	})

	_, err := poll(t, task)
	require.Error(t, err)
	assert.True(t, shared.IsInternal(err))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestAsync_ContextCanceledAfterReturn(t *testing.T) {
	got := make(chan context.Context, 1)
	task := tasks.Async(context.Background(), func(ctx context.Context) error {
		got <- ctx
		return nil
	})

	_, err := poll(t, task)
	require.NoError(t, err)
	ctx := <-got
	require.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, time.Millisecond)
}

func TestAsync_RecordsCallerLocation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	async := tasks.Async(context.Background(), noop)
	assert.Contains(t, async.Location, "tasks_test.go:")

	probe := tasks.Probe(context.Background(), nil, "http://localhost/ok")
	assert.Contains(t, probe.Location, "tasks_test.go:")

	explicit := tasks.Async(context.Background(), noop, taskmanager.WithLocation("jobs.go:7"))
	assert.Equal(t, "jobs.go:7", explicit.Location)
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	t.Run("2xx succeeds", func(t *testing.T) {
		task := tasks.Probe(context.Background(), client, srv.URL+"/ok")
		assert.Equal(t, "probe "+srv.URL+"/ok", task.Name)

		res, err := poll(t, task)
		require.NoError(t, err)
		assert.Equal(t, taskmanager.Succeeded, res)
	})

	t.Run("non-2xx fails", func(t *testing.T) {
		task := tasks.Probe(context.Background(), client, srv.URL+"/missing")

		_, err := poll(t, task)
		require.Error(t, err)
		assert.True(t, shared.IsDependencyFailure(err))
		assert.Contains(t, err.Error(), "status 404")
	})

	t.Run("name can be overridden", func(t *testing.T) {
		task := tasks.Probe(context.Background(), client, srv.URL, taskmanager.WithName("homepage"))
		assert.Equal(t, "homepage", task.Name)
	})
}
