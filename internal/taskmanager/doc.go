// Package taskmanager runs a queue of cooperative tasks, one tick at a time.
//
// A Manager attaches to a TickSource (the host's per-frame callback). On every tick
// it either promotes the head of the queue or calls the current task's function once.
// The function answers with a Result:
//
//   - Continue: not done, call again next tick (the deadline keeps running)
//   - Succeeded: done, the next task is promoted on the following tick
//   - AbortRequested: the whole queue is cleared
//
// Each task is bounded by a time limit. Settings resolve per tick from the task's
// Overrides and the manager defaults, so changing defaults affects tasks already queued.
// Hooks (OnTimeout, OnCompletion, OnException, Companion) can be registered on the
// manager and on individual tasks; default hooks run first unless the task has its own
// config with ExecuteDefaultHooks disabled.
//
// Basic usage:
//
//	m, err := taskmanager.New(loop, taskmanager.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	m.Enqueue(taskmanager.Until(func() bool { return door.Open() }))
//	m.EnqueueDelay(500 * time.Millisecond)
//	m.Enqueue(taskmanager.Action(walkIn, taskmanager.WithName("walk in")))
//
// The manager has no locks. Task bodies, hooks and every call into the manager must run
// on the tick goroutine; other goroutines go through the host loop (see package host).
//
// Task bodies may remove themselves (Abort or AbortCurrent from inside the function).
// The manager re-checks the current slot after every call into user code and stops the
// tick when the task is gone.
package taskmanager
