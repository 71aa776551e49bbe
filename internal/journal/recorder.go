package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"neotask/internal/taskmanager"
)

// Recorder turns task lifecycle events into journal rows. Events are handed to a
// writer goroutine through a buffered channel so the tick never waits on disk;
// when the buffer is full the event is dropped and counted.
type Recorder struct {
	store   *Store
	log     *slog.Logger
	manager string
	now     func() time.Time
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	ch      chan Run
	done    chan struct{}
	dropped atomic.Int64
	written atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithManagerLabel tags every row with the manager label.
func WithManagerLabel(label string) RecorderOption {
	return func(r *Recorder) { r.manager = label }
}

// WithBuffer sets the channel capacity. Default 256.
func WithBuffer(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.ch = make(chan Run, n)
		}
	}
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRecorder starts the writer goroutine. Close must be called to flush it.
func NewRecorder(store *Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		log:     slog.Default(),
		manager: "default",
		now:     time.Now,
		timeout: 5 * time.Second,
		ch:      make(chan Run, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With(slog.String("component", "journal"))
	go r.run()
	return r
}

var _ taskmanager.Listener = (*Recorder)(nil)

// TaskStarted implements taskmanager.Listener.
func (r *Recorder) TaskStarted(task *taskmanager.Task) {
	r.log.Debug("task started", slog.String("task", task.String()))
}

// TaskFinished implements taskmanager.Listener.
func (r *Recorder) TaskFinished(task *taskmanager.Task, outcome taskmanager.Outcome, err error) {
	run := Run{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		TaskName:   task.Name,
		Location:   task.Location,
		Manager:    r.manager,
		Outcome:    string(outcome),
		Ticks:      task.Ticks(),
		StartedAt:  task.StartedAt(),
		FinishedAt: r.now(),
	}
	if err != nil {
		run.Error = err.Error()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- run:
	default:
		r.dropped.Add(1)
		r.log.Warn("journal buffer full, run dropped", slog.String("task", task.String()))
	}
}

// Dropped returns how many runs were not recorded because the buffer was full
// or the recorder was closed.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many runs reached the store.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Close stops accepting events and waits until buffered runs are written or ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for run := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.store.Insert(ctx, run)
		cancel()
		if err != nil {
			r.log.Error("failed to record run", slog.String("run", run.ID), slog.Any("error", err))
			continue
		}
		r.written.Add(1)
	}
}
