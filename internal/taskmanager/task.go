package taskmanager

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskFunc is the body of a task. It is called once per tick while the task is current.
type TaskFunc func() (Result, error)

// TaskConfig is the optional per-task configuration.
type TaskConfig struct {
	Overrides Overrides
	Hooks     Hooks
}

// Task is a queue entry.
type Task struct {
	ID       string
	Name     string
	Location string
	Func     TaskFunc
	// Config is nil for tasks that fully rely on the manager defaults.
	Config *TaskConfig

	ticks     int
	startedAt time.Time
	finished  bool
}

// String returns "name@location".
func (t *Task) String() string {
	return t.Name + "@" + t.Location
}

// Ticks returns how many times the task function has been invoked.
func (t *Task) Ticks() int { return t.ticks }

// StartedAt returns when the task became current, or the zero time if it never did.
func (t *Task) StartedAt() time.Time { return t.startedAt }

func (t *Task) overrides() *Overrides {
	if t.Config == nil {
		return nil
	}
	return &t.Config.Overrides
}

// TaskOption configures a Task created by NewTask.
type TaskOption func(*Task)

// WithName sets a human-readable name.
func WithName(name string) TaskOption {
	return func(t *Task) { t.Name = name }
}

// WithLocation replaces the recorded creation site. Wrappers that build tasks on
// behalf of their caller use it with CallerLocation.
func WithLocation(loc string) TaskOption {
	return func(t *Task) { t.Location = loc }
}

// WithConfig attaches a per-task configuration.
func WithConfig(cfg TaskConfig) TaskOption {
	return func(t *Task) { t.Config = &cfg }
}

// WithTimeLimit overrides the time limit for this task only.
func WithTimeLimit(d time.Duration) TaskOption {
	return func(t *Task) {
		if t.Config == nil {
			t.Config = &TaskConfig{}
		}
		t.Config.Overrides.TimeLimit = &d
	}
}

// WithTaskHooks sets task-level hooks.
func WithTaskHooks(h Hooks) TaskOption {
	return func(t *Task) {
		if t.Config == nil {
			t.Config = &TaskConfig{}
		}
		t.Config.Hooks = h
	}
}

// NewTask creates a task. The name defaults to the function name and the location
// to the caller's file and line.
func NewTask(fn TaskFunc, opts ...TaskOption) *Task {
	return newTask(2, funcName(fn), fn, opts...)
}

// Action wraps a function that finishes in a single call.
func Action(fn func(), opts ...TaskOption) *Task {
	return newTask(2, funcName(fn), func() (Result, error) {
		fn()
		return Succeeded, nil
	}, opts...)
}

// Until wraps a condition polled every tick until it returns true.
func Until(cond func() bool, opts ...TaskOption) *Task {
	return newTask(2, funcName(cond), func() (Result, error) {
		if cond() {
			return Succeeded, nil
		}
		return Continue, nil
	}, opts...)
}

func newTask(skip int, name string, fn TaskFunc, opts ...TaskOption) *Task {
	t := &Task{
		ID:       uuid.NewString(),
		Name:     name,
		Location: callerLocation(skip + 1),
		Func:     fn,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "unnamed"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "unnamed"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// CallerLocation returns "file.go:line" of a function on the calling goroutine's
// stack. Skip 0 is the function that calls CallerLocation.
func CallerLocation(skip int) string {
	return callerLocation(skip + 2)
}

func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
