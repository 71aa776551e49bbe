package taskmanager

import "time"

// TaskInfo is a read-only view of a task.
type TaskInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Ticks    int    `json:"ticks"`
}

// Snapshot is a copy of the manager state for diagnostics and control surfaces.
type Snapshot struct {
	Label         string        `json:"label"`
	Busy          bool          `json:"busy"`
	Queued        int           `json:"queued"`
	MaxTasks      int           `json:"max_tasks"`
	Progress      float64       `json:"progress"`
	StepMode      bool          `json:"step_mode"`
	StackActive   bool          `json:"stack_active"`
	RemainingTime time.Duration `json:"remaining_time"`
	Current       *TaskInfo     `json:"current,omitempty"`
	Pending       []TaskInfo    `json:"pending"`
	Defaults      Settings      `json:"defaults"`
}

// Info returns a read-only view of t.
func (t *Task) Info() TaskInfo {
	return TaskInfo{ID: t.ID, Name: t.Name, Location: t.Location, Ticks: t.ticks}
}

// Snapshot copies the current state.
func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{
		Label:         m.label,
		Busy:          m.IsBusy(),
		Queued:        m.QueuedCount(),
		MaxTasks:      m.maxTasks,
		Progress:      m.Progress(),
		StepMode:      m.stepMode,
		StackActive:   m.stackActive,
		RemainingTime: m.RemainingTime(),
		Pending:       make([]TaskInfo, 0, len(m.queue)),
		Defaults:      m.settings,
	}
	if m.current != nil {
		info := m.current.Info()
		s.Current = &info
	}
	for _, t := range m.queue {
		s.Pending = append(s.Pending, t.Info())
	}
	return s
}
