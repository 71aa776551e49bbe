package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"neotask/internal/host"
	"neotask/internal/journal"
	"neotask/internal/shared"
	"neotask/internal/taskmanager"
	"neotask/internal/tasks"
)

var (
	// ErrIdle is returned by operations that need a current task when there is none.
	ErrIdle = fmt.Errorf("control: no task is running: %w", shared.ErrConflict)
	// ErrNoJournal is returned by run queries when no journal is configured.
	ErrNoJournal = fmt.Errorf("control: journal disabled: %w", shared.ErrNotFound)
	// ErrNoProber is returned by probe operations when no HTTP client is configured.
	ErrNoProber = fmt.Errorf("control: probes disabled: %w", shared.ErrConflict)
)

// RunStore is the read side of the journal.
type RunStore interface {
	Get(ctx context.Context, id string) (journal.Run, error)
	List(ctx context.Context, f journal.Filter) ([]journal.Run, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// Controller exposes a manager to goroutines other than the tick goroutine.
// Every manager access is marshalled onto the host loop with Call.
type Controller struct {
	loop   *host.Loop
	mgr    *taskmanager.Manager
	runs   RunStore
	prober tasks.Getter
	base   context.Context
	log    *slog.Logger
	valid  *validator.Validate
}

// Option configures Controller.
type Option func(*Controller)

// WithRuns enables run queries.
func WithRuns(r RunStore) Option {
	return func(c *Controller) { c.runs = r }
}

// WithProber enables probe tasks.
func WithProber(g tasks.Getter) Option {
	return func(c *Controller) { c.prober = g }
}

// WithBaseContext sets the context probe requests derive from. Cancelling it
// cancels in-flight probes.
func WithBaseContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.base = ctx
		}
	}
}

// WithLogger sets logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a Controller for mgr, which must tick on loop.
func New(loop *host.Loop, mgr *taskmanager.Manager, opts ...Option) *Controller {
	c := &Controller{
		loop:  loop,
		mgr:   mgr,
		base:  context.Background(),
		log:   slog.Default(),
		valid: validator.New(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "control")
	return c
}

func (c *Controller) call(ctx context.Context, fn func() error) error {
	err := c.loop.Call(ctx, fn)
	if errors.Is(err, host.ErrStopped) {
		return fmt.Errorf("control: %w: %w", shared.ErrConflict, err)
	}
	return err
}

// Snapshot returns the manager state.
func (c *Controller) Snapshot(ctx context.Context) (taskmanager.Snapshot, error) {
	var s taskmanager.Snapshot
	err := c.call(ctx, func() error {
		s = c.mgr.Snapshot()
		return nil
	})
	return s, err
}

// Abort clears the current task, the queue and the stack.
func (c *Controller) Abort(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.mgr.Abort()
		return nil
	})
}

// AbortCurrent drops the current task and returns it.
func (c *Controller) AbortCurrent(ctx context.Context) (taskmanager.TaskInfo, error) {
	var info taskmanager.TaskInfo
	err := c.call(ctx, func() error {
		cur := c.mgr.Current()
		if cur == nil {
			return ErrIdle
		}
		info = cur.Info()
		c.mgr.AbortCurrent()
		return nil
	})
	return info, err
}

// Step advances the manager by one tick. It fails outside of step mode.
func (c *Controller) Step(ctx context.Context) (taskmanager.Snapshot, error) {
	var s taskmanager.Snapshot
	err := c.call(ctx, func() error {
		if err := c.mgr.Step(); err != nil {
			return err
		}
		s = c.mgr.Snapshot()
		return nil
	})
	return s, err
}

// SetStepMode switches step mode.
func (c *Controller) SetStepMode(ctx context.Context, on bool) error {
	return c.call(ctx, func() error {
		if c.mgr.Disposed() {
			return taskmanager.ErrDisposed
		}
		c.mgr.SetStepMode(on)
		return nil
	})
}

// UpdateDefaults merges o into the manager defaults and returns the result.
func (c *Controller) UpdateDefaults(ctx context.Context, o taskmanager.Overrides) (taskmanager.Settings, error) {
	var s taskmanager.Settings
	err := c.call(ctx, func() error {
		if err := c.mgr.UpdateDefaults(o); err != nil {
			return shared.MarkKind(err, shared.KindValidation)
		}
		s = c.mgr.Defaults()
		return nil
	})
	return s, err
}

// EnqueueDelay appends a delay of d.
func (c *Controller) EnqueueDelay(ctx context.Context, d time.Duration) (taskmanager.TaskInfo, error) {
	if d <= 0 {
		return taskmanager.TaskInfo{}, fmt.Errorf("control: delay must be positive: %w", shared.ErrValidation)
	}
	var info taskmanager.TaskInfo
	err := c.call(ctx, func() error {
		info = c.mgr.EnqueueDelay(d).Info()
		return nil
	})
	return info, err
}

// ProbeRequest describes an on-demand probe.
type ProbeRequest struct {
	URL       string        `validate:"required,http_url"`
	TimeLimit time.Duration `validate:"gte=0"`
	// Insert puts the probe at the head of the queue.
	Insert bool
}

// EnqueueProbe queues an HTTP probe of req.URL.
func (c *Controller) EnqueueProbe(ctx context.Context, req ProbeRequest) (taskmanager.TaskInfo, error) {
	if c.prober == nil {
		return taskmanager.TaskInfo{}, ErrNoProber
	}
	if err := c.valid.Struct(req); err != nil {
		return taskmanager.TaskInfo{}, fmt.Errorf("control: %w: %w", shared.ErrValidation, err)
	}
	var info taskmanager.TaskInfo
	err := c.call(ctx, func() error {
		t := c.probeTask(req.URL, req.TimeLimit)
		if req.Insert {
			c.mgr.Insert(t)
		} else {
			c.mgr.Enqueue(t)
		}
		info = t.Info()
		return nil
	})
	return info, err
}

func (c *Controller) probeTask(url string, limit time.Duration) *taskmanager.Task {
	var opts []taskmanager.TaskOption
	if limit > 0 {
		opts = append(opts, taskmanager.WithTimeLimit(limit))
	}
	return tasks.Probe(c.base, c.prober, url, opts...)
}

// ScheduleProbes registers a cron feed that enqueues a probe per URL. A batch is
// skipped while the previous one is still queued.
func (c *Controller) ScheduleProbes(spec string, urls []string) (host.FeedID, error) {
	if c.prober == nil {
		return 0, ErrNoProber
	}
	if len(urls) == 0 {
		return 0, fmt.Errorf("control: no probe urls: %w", shared.ErrValidation)
	}
	pending := make(map[*taskmanager.Task]struct{}, len(urls))
	return c.loop.AddCronFeed("probes", spec, func() {
		if c.holdsAny(pending) {
			c.log.Warn("previous probe batch still queued, skipping", slog.Int("urls", len(urls)))
			return
		}
		clear(pending)
		for _, u := range urls {
			t := c.probeTask(u, 0)
			pending[t] = struct{}{}
			c.mgr.Enqueue(t)
		}
	})
}

// holdsAny reports whether the manager still has any of set current or queued.
func (c *Controller) holdsAny(set map[*taskmanager.Task]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	if _, ok := set[c.mgr.Current()]; ok {
		return true
	}
	for _, t := range c.mgr.Tasks() {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Runs lists journal entries.
func (c *Controller) Runs(ctx context.Context, f journal.Filter) ([]journal.Run, error) {
	if c.runs == nil {
		return nil, ErrNoJournal
	}
	return c.runs.List(ctx, f)
}

// Run returns one journal entry.
func (c *Controller) Run(ctx context.Context, id string) (journal.Run, error) {
	if c.runs == nil {
		return journal.Run{}, ErrNoJournal
	}
	return c.runs.Get(ctx, id)
}

// RunCounts returns the number of journal entries per outcome.
func (c *Controller) RunCounts(ctx context.Context) (map[string]int, error) {
	if c.runs == nil {
		return nil, ErrNoJournal
	}
	return c.runs.Counts(ctx)
}
