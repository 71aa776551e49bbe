package taskmanager

import (
	"fmt"
	"time"
)

// delayGrace is added to a delay task's own time limit so it never times out while waiting.
const delayGrace = 5 * time.Second

// EnqueueDelay appends a task that waits d on the manager clock and returns it.
func (m *Manager) EnqueueDelay(d time.Duration) *Task {
	t := m.delayTask(d)
	m.Enqueue(t)
	return t
}

// InsertDelay puts a task that waits d at the head of the queue and returns it.
func (m *Manager) InsertDelay(d time.Duration) *Task {
	t := m.delayTask(d)
	m.Insert(t)
	return t
}

func (m *Manager) delayTask(d time.Duration) *Task {
	var until time.Time
	return newTask(3, fmt.Sprintf("delay %s", d), func() (Result, error) {
		now := m.clock.Now()
		if until.IsZero() {
			until = now.Add(d)
		}
		if now.Before(until) {
			return Continue, nil
		}
		return Succeeded, nil
	}, WithTimeLimit(d+delayGrace))
}
