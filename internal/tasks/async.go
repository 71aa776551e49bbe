package tasks

import (
	"context"
	"fmt"

	"neotask/internal/shared"
	"neotask/internal/taskmanager"
)

// Async returns a task that runs fn on its own goroutine the first time it is
// ticked and then polls for the result on every following tick. The task
// succeeds when fn returns nil and fails with fn's error otherwise; a panic in
// fn is reported as shared.ErrInternal.
//
// fn receives a context derived from ctx that is canceled once fn returns.
// Aborting the manager does not cancel fn, so fn should bound its own work.
func Async(ctx context.Context, fn func(ctx context.Context) error, opts ...taskmanager.TaskOption) *taskmanager.Task {
	return async(ctx, fn, taskmanager.CallerLocation(1), opts)
}

// async records loc as the task location unless opts set their own.
func async(ctx context.Context, fn func(ctx context.Context) error, loc string, opts []taskmanager.TaskOption) *taskmanager.Task {
	opts = append([]taskmanager.TaskOption{taskmanager.WithLocation(loc)}, opts...)
	var (
		done     chan error
		finished bool
		result   error
	)
	return taskmanager.NewTask(func() (taskmanager.Result, error) {
		if finished {
			return settle(result)
		}
		if done == nil {
			done = make(chan error, 1)
			go run(ctx, fn, done)
		}
		select {
		case err := <-done:
			finished, result = true, err
			return settle(err)
		default:
			return taskmanager.Continue, nil
		}
	}, opts...)
}

func run(ctx context.Context, fn func(ctx context.Context) error, done chan<- error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			done <- fmt.Errorf("%w: async task panicked: %v", shared.ErrInternal, r)
		}
	}()
	done <- fn(ctx)
}

func settle(err error) (taskmanager.Result, error) {
	if err != nil {
		return taskmanager.Continue, err
	}
	return taskmanager.Succeeded, nil
}
