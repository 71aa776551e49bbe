package taskmanager

// Result is the tri-state signal returned by a task function.
type Result int

const (
	// Continue means the task is not done yet and must be invoked again on the next tick.
	Continue Result = iota
	// Succeeded completes the task; the next queued task is promoted on the following tick.
	Succeeded
	// AbortRequested clears the whole manager: current task, queue and stack.
	AbortRequested
)

// String returns the string representation of the Result.
func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Succeeded:
		return "succeeded"
	case AbortRequested:
		return "abort_requested"
	default:
		return "unknown"
	}
}

// Override is a hook answer: either keep the value the hook was given or replace it.
type Override[T any] struct {
	value T
	set   bool
}

// Keep returns an Override that leaves the value untouched.
func Keep[T any]() Override[T] { return Override[T]{} }

// Replace returns an Override that substitutes v.
func Replace[T any](v T) Override[T] { return Override[T]{value: v, set: true} }

// Get returns the replacement value and whether one was set.
func (o Override[T]) Get() (T, bool) { return o.value, o.set }

// Or returns the replacement value, or def when the override keeps the value.
func (o Override[T]) Or(def T) T {
	if o.set {
		return o.value
	}
	return def
}
