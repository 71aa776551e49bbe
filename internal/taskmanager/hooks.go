package taskmanager

import "time"

// TimeoutHook is called when the current task ran past its deadline. It receives
// the (negative) remaining time and may return a new value; a non-negative answer
// keeps the task alive.
type TimeoutHook func(task *Task, remaining time.Duration) Override[time.Duration]

// CompletionHook is called when a task returns anything other than Continue.
// It may rewrite the result, e.g. escalate Succeeded to AbortRequested.
type CompletionHook func(task *Task, result Result) Override[Result]

// ExceptionOutcome is the answer of an exception hook. Each field either keeps
// what earlier hooks decided or replaces it, so a hook with no opinion returns
// the zero value.
type ExceptionOutcome struct {
	// Continue keeps the failed task current; it runs again on the next tick.
	Continue Override[bool]
	// Abort overrides Settings.AbortOnError when Continue is not set.
	Abort Override[bool]
}

// merge applies the fields next replaces.
func (o ExceptionOutcome) merge(next ExceptionOutcome) ExceptionOutcome {
	if _, ok := next.Continue.Get(); ok {
		o.Continue = next.Continue
	}
	if _, ok := next.Abort.Get(); ok {
		o.Abort = next.Abort
	}
	return o
}

// ExceptionHook is called when a task function returns an error or panics.
// prev holds what earlier hooks decided.
type ExceptionHook func(task *Task, err error, prev ExceptionOutcome) ExceptionOutcome

// CompanionFunc is called once per tick for the task that was current when the tick began.
type CompanionFunc func(task *Task)

// Hooks groups the lifecycle events. Any field may be nil.
type Hooks struct {
	OnTimeout    TimeoutHook
	OnCompletion CompletionHook
	OnException  ExceptionHook
	Companion    CompanionFunc
}

// hookChain yields the hooks to fire for a task: defaults first (when allowed), then the task's own.
func (m *Manager) hookChain(task *Task, runDefaults bool) []Hooks {
	chain := make([]Hooks, 0, 2)
	if runDefaults {
		chain = append(chain, m.hooks)
	}
	if task.Config != nil {
		chain = append(chain, task.Config.Hooks)
	}
	return chain
}

func fireTimeout(chain []Hooks, task *Task, remaining time.Duration) time.Duration {
	for _, h := range chain {
		if h.OnTimeout != nil {
			remaining = h.OnTimeout(task, remaining).Or(remaining)
		}
	}
	return remaining
}

func fireCompletion(chain []Hooks, task *Task, result Result) Result {
	for _, h := range chain {
		if h.OnCompletion != nil {
			result = h.OnCompletion(task, result).Or(result)
		}
	}
	return result
}

func fireException(chain []Hooks, task *Task, err error) ExceptionOutcome {
	var out ExceptionOutcome
	for _, h := range chain {
		if h.OnException != nil {
			out = out.merge(h.OnException(task, err, out))
		}
	}
	return out
}

func fireCompanion(chain []Hooks, task *Task) {
	for _, h := range chain {
		if h.Companion != nil {
			h.Companion(task)
		}
	}
}
