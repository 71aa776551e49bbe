package taskmanager

import (
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	subs map[int]func()
	next int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[int]func())}
}

func (f *fakeSource) Subscribe(fn func()) func() {
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() { delete(f.subs, id) }
}

func (f *fakeSource) fire() {
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := f.subs[id]; ok {
			fn()
		}
	}
}

func (f *fakeSource) fireN(n int) {
	for i := 0; i < n; i++ {
		f.fire()
	}
}

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type finished struct {
	name    string
	outcome Outcome
	err     error
}

type recordingListener struct {
	started  []string
	finished []finished
}

func (l *recordingListener) TaskStarted(t *Task) { l.started = append(l.started, t.Name) }

func (l *recordingListener) TaskFinished(t *Task, o Outcome, err error) {
	l.finished = append(l.finished, finished{name: t.Name, outcome: o, err: err})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	src      *fakeSource
	clock    *fakeClock
	listener *recordingListener
	m        *Manager
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{src: newFakeSource(), clock: newFakeClock(), listener: &recordingListener{}}
	base := []Option{WithLogger(discardLogger()), WithClock(h.clock), WithListener(h.listener)}
	m, err := New(h.src, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Dispose)
	h.m = m
	return h
}

// result returns a task body that always answers r.
func result(r Result) TaskFunc {
	return func() (Result, error) { return r, nil }
}
