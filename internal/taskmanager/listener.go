package taskmanager

// Outcome describes how a task left the current slot.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeAborted   Outcome = "aborted"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
	OutcomeDetached  Outcome = "detached"
	OutcomeDiscarded Outcome = "discarded"
)

// Listener observes task lifecycle. Calls happen on the tick goroutine and must not block.
type Listener interface {
	TaskStarted(task *Task)
	TaskFinished(task *Task, outcome Outcome, err error)
}

type nopListener struct{}

func (nopListener) TaskStarted(*Task) {}

func (nopListener) TaskFinished(*Task, Outcome, error) {}
