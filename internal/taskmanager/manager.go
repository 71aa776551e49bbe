package taskmanager

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// TickSource delivers the host's per-frame callback. Subscribe returns the function
// that detaches fn again.
type TickSource interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Clock supplies monotonic time. time.Now carries a monotonic reading, so the
// default clock is enough outside of tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Manager runs queued tasks one at a time, advancing the current task once per tick.
//
// A Manager is not safe for concurrent use. All calls must happen on the goroutine
// that delivers ticks, either from the tick itself or from task bodies and hooks.
type Manager struct {
	label       string
	source      TickSource
	unsubscribe func()
	registry    *Registry
	log         *slog.Logger
	clock       Clock
	listener    Listener

	settings Settings
	hooks    Hooks

	queue    []*Task
	current  *Task
	invoking *Task
	deadline time.Time
	maxTasks int
	stepMode bool
	disposed bool

	stack       []*Task
	stackActive bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLabel names the manager in logs and snapshots.
func WithLabel(label string) Option {
	return func(m *Manager) { m.label = label }
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces the monotonic clock.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithRegistry registers the manager so Registry.DisposeAll can tear it down.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithDefaults layers o over the built-in default settings.
func WithDefaults(o Overrides) Option {
	return func(m *Manager) { m.settings = m.settings.With(&o) }
}

// WithDefaultHooks sets the default-level hooks.
func WithDefaultHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithListener installs a lifecycle listener.
func WithListener(l Listener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listener = l
		}
	}
}

// New creates a manager and attaches it to source. A nil source is allowed; such a
// manager only advances through Step once step mode is enabled.
func New(source TickSource, opts ...Option) (*Manager, error) {
	m := &Manager{
		label:    "default",
		source:   source,
		log:      slog.Default(),
		clock:    systemClock{},
		listener: nopListener{},
		settings: DefaultSettings(),
	}
	for _, o := range opts {
		o(m)
	}
	if err := m.settings.Validate(); err != nil {
		return nil, err
	}
	m.log = m.log.With(slog.String("component", "taskmanager"), slog.String("manager", m.label))
	m.attach()
	if m.registry != nil {
		m.registry.add(m)
	}
	return m, nil
}

// Label returns the manager name.
func (m *Manager) Label() string { return m.label }

// Defaults returns the current default settings.
func (m *Manager) Defaults() Settings { return m.settings }

// UpdateDefaults merges o into the default settings. Unset fields keep their value;
// a merge that would leave the defaults invalid is rejected.
func (m *Manager) UpdateDefaults(o Overrides) error {
	next := m.settings.With(&o)
	if err := next.Validate(); err != nil {
		return err
	}
	m.settings = next
	return nil
}

// DefaultHooks returns the default-level hooks.
func (m *Manager) DefaultHooks() Hooks { return m.hooks }

// SetDefaultHooks replaces the default-level hooks.
func (m *Manager) SetDefaultHooks(h Hooks) { m.hooks = h }

// IsBusy reports whether a task is current or queued.
func (m *Manager) IsBusy() bool { return len(m.queue) != 0 || m.current != nil }

// QueuedCount returns the number of queued tasks plus the current one.
func (m *Manager) QueuedCount() int {
	n := len(m.queue)
	if m.current != nil {
		n++
	}
	return n
}

// MaxTasks returns the most tasks observed since the manager was last idle.
func (m *Manager) MaxTasks() int { return m.maxTasks }

// Progress returns the completed share of the current run, in [0, 1].
func (m *Manager) Progress() float64 {
	if m.maxTasks == 0 {
		return 0
	}
	p := float64(m.maxTasks-m.QueuedCount()) / float64(m.maxTasks)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Current returns the task being executed, or nil.
func (m *Manager) Current() *Task { return m.current }

// Tasks returns a copy of the pending queue.
func (m *Manager) Tasks() []*Task {
	out := make([]*Task, len(m.queue))
	copy(out, m.queue)
	return out
}

// RemainingTime returns how long the current task may still run. It is zero while
// no deadline has been started.
func (m *Manager) RemainingTime() time.Duration {
	if m.deadline.IsZero() {
		return 0
	}
	return m.deadline.Sub(m.clock.Now())
}

// SetRemainingTime moves the current deadline to now+d.
func (m *Manager) SetRemainingTime(d time.Duration) {
	m.deadline = m.clock.Now().Add(d)
}

// StepMode reports whether automatic ticking is suspended.
func (m *Manager) StepMode() bool { return m.stepMode }

// SetStepMode switches between automatic ticking and manual Step calls. Time limits
// are not enforced while step mode is on.
func (m *Manager) SetStepMode(on bool) {
	if m.stepMode == on {
		return
	}
	m.stepMode = on
	if on {
		m.detach()
	} else {
		m.attach()
	}
	m.log.Info("step mode changed", slog.Bool("enabled", on))
}

// Step advances exactly one tick. It fails outside of step mode.
func (m *Manager) Step() error {
	if m.disposed {
		return ErrDisposed
	}
	if !m.stepMode {
		return ErrNotInStepMode
	}
	m.tick()
	return nil
}

// Enqueue appends tasks to the tail of the queue, or to the open stack.
func (m *Manager) Enqueue(task *Task) {
	if task == nil {
		return
	}
	if m.stackActive {
		m.stack = append(m.stack, task)
		return
	}
	m.queue = append(m.queue, task)
}

// EnqueueMulti appends tasks in argument order.
func (m *Manager) EnqueueMulti(tasks ...*Task) {
	for _, t := range tasks {
		m.Enqueue(t)
	}
}

// Insert puts a task at the head of the queue, or at the head of the open stack.
func (m *Manager) Insert(task *Task) {
	if task == nil {
		return
	}
	if m.stackActive {
		m.stack = append([]*Task{task}, m.stack...)
		return
	}
	m.queue = append([]*Task{task}, m.queue...)
}

// InsertMulti puts tasks at the head of the queue keeping argument order.
func (m *Manager) InsertMulti(tasks ...*Task) {
	for i := len(tasks) - 1; i >= 0; i-- {
		m.Insert(tasks[i])
	}
}

// Abort clears the queue, the current task, the deadline and any open stack.
func (m *Manager) Abort() {
	if cur := m.current; cur != nil && cur != m.invoking {
		m.finish(cur, OutcomeDiscarded, nil)
	}
	m.clear()
}

// AbortCurrent drops only the current task; the next tick promotes the queue head.
func (m *Manager) AbortCurrent() {
	if cur := m.current; cur != nil && cur != m.invoking {
		m.finish(cur, OutcomeDiscarded, nil)
	}
	m.current = nil
	m.deadline = time.Time{}
}

// Dispose detaches the manager from its tick source and registry and discards all
// tasks. Calling it more than once is a no-op.
func (m *Manager) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	m.detach()
	if m.registry != nil {
		m.registry.remove(m)
	}
	m.Abort()
	m.log.Debug("task manager disposed")
}

// Disposed reports whether Dispose was called.
func (m *Manager) Disposed() bool { return m.disposed }

func (m *Manager) attach() {
	if m.source == nil || m.unsubscribe != nil || m.disposed || m.stepMode {
		return
	}
	m.unsubscribe = m.source.Subscribe(m.tick)
}

func (m *Manager) detach() {
	if m.unsubscribe == nil {
		return
	}
	m.unsubscribe()
	m.unsubscribe = nil
}

func (m *Manager) clear() {
	m.queue = nil
	m.current = nil
	m.deadline = time.Time{}
	m.DiscardStack()
}

func (m *Manager) promote() {
	task := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	m.current = task
	m.deadline = time.Time{}
	task.ticks = 0
	task.finished = false
	task.startedAt = m.clock.Now()
	m.listener.TaskStarted(task)
}

func (m *Manager) finish(task *Task, outcome Outcome, err error) {
	if task.finished {
		return
	}
	task.finished = true
	m.listener.TaskFinished(task, outcome, err)
}

// tick is the per-frame state machine.
func (m *Manager) tick() {
	if len(m.queue) == 0 && m.current == nil {
		m.maxTasks = 0
		return
	}
	// Misconfigured defaults are a programming error and must not be swallowed.
	if err := m.settings.Validate(); err != nil {
		panic(err)
	}
	if m.current == nil {
		m.promote()
	}
	task := m.current
	s := m.settings.With(task.overrides())
	chain := m.hookChain(task, task.Config == nil || s.ExecuteDefaultHooks)

	if n := m.QueuedCount(); n > m.maxTasks {
		m.maxTasks = n
	}

	if detached := m.advance(task, s, chain); detached {
		return
	}
	fireCompanion(chain, task)
}

// advance runs one step of the current task. It reports true when the task vanished
// from the current slot while user code ran and the tick must stop.
func (m *Manager) advance(task *Task, s Settings, chain []Hooks) bool {
	if m.deadline.IsZero() {
		m.SetRemainingTime(s.TimeLimit)
		m.debug(s, "starting task", taskAttr(task), slog.Duration("timeout", s.TimeLimit))
	}

	if !m.stepMode {
		if remaining := m.RemainingTime(); remaining < 0 {
			adjusted := fireTimeout(chain, task, remaining)
			if m.current != task {
				// the companion still runs for the task that started this tick
				m.log.Warn("task manager was aborted from a timeout hook", taskAttr(task))
				return false
			}
			if adjusted != remaining {
				m.debug(s, "remaining time changed by timeout hook", taskAttr(task),
					slog.Duration("from", remaining), slog.Duration("to", adjusted))
				m.SetRemainingTime(adjusted)
			}
		}
		if m.RemainingTime() < 0 {
			m.debug(s, "task timed out", taskAttr(task))
			m.onTimeout(task, s)
			return false
		}
	}

	result, err := m.invoke(task)
	if err != nil {
		if errors.Is(err, ErrTaskTimeout) {
			m.onTimeout(task, s)
		} else {
			m.onError(task, s, chain, err)
		}
		return false
	}
	if m.current != task {
		m.log.Warn("task manager was aborted from inside the task", taskAttr(task))
		m.finish(task, OutcomeDetached, nil)
		return true
	}

	if result != Continue {
		rewritten := fireCompletion(chain, task, result)
		if rewritten != result {
			m.debug(s, "task result changed by completion hook", taskAttr(task),
				slog.String("from", result.String()), slog.String("to", rewritten.String()))
			result = rewritten
		}
	}

	switch result {
	case Succeeded:
		m.debug(s, "task completed successfully", taskAttr(task))
		m.finish(task, OutcomeSucceeded, nil)
		m.current = nil
	case AbortRequested:
		m.debug(s, "received abort request from task", taskAttr(task))
		m.finish(task, OutcomeAborted, nil)
		m.clear()
	}
	return false
}

func (m *Manager) invoke(task *Task) (result Result, err error) {
	m.invoking = task
	defer func() {
		m.invoking = nil
		if r := recover(); r != nil {
			result, err = Continue, panicError{value: r}
		}
	}()
	task.ticks++
	return task.Func()
}

func (m *Manager) onTimeout(task *Task, s Settings) {
	if !s.TimeoutSilently {
		m.log.Warn("task timed out", taskAttr(task), slog.Duration("time_limit", s.TimeLimit), slog.Any("error", ErrTaskTimeout))
	}
	m.finish(task, OutcomeTimedOut, ErrTaskTimeout)
	if s.AbortOnTimeout {
		m.clear()
	} else {
		m.current = nil
	}
}

func (m *Manager) onError(task *Task, s Settings, chain []Hooks, err error) {
	if s.ShowError {
		m.log.Error("task failed", taskAttr(task), slog.Any("error", err))
	}

	abort := s.AbortOnError
	if m.current != nil {
		out := fireException(chain, task, err)
		if out.Continue.Or(false) {
			m.debug(s, "task failed but exception hook ordered to continue", taskAttr(task))
			return
		}
		if v, ok := out.Abort.Get(); ok {
			m.debug(s, "abort behaviour changed by exception hook", taskAttr(task),
				slog.Bool("from", abort), slog.Bool("to", v))
			abort = v
		}
	}

	m.finish(task, OutcomeFailed, err)
	if abort {
		m.clear()
	} else {
		m.current = nil
	}
}

// debug logs lifecycle messages; ShowDebug lifts them to info so they reach the console.
func (m *Manager) debug(s Settings, msg string, attrs ...slog.Attr) {
	level := slog.LevelDebug
	if s.ShowDebug {
		level = slog.LevelInfo
	}
	m.log.LogAttrs(context.Background(), level, msg, attrs...)
}

func taskAttr(t *Task) slog.Attr {
	return slog.Group("task",
		slog.String("name", t.Name),
		slog.String("location", t.Location),
		slog.String("id", t.ID),
	)
}
