package taskmanager

// BeginStack diverts subsequent Enqueue and Insert calls into a buffer until
// InsertStack or DiscardStack is called. It lets a task schedule a batch of follow-up
// work that runs before everything already queued.
func (m *Manager) BeginStack() error {
	if m.stackActive {
		return ErrStackActive
	}
	m.stackActive = true
	m.stack = nil
	return nil
}

// InsertStack closes the stack and inserts its tasks at the head of the queue in the
// order they were stacked.
func (m *Manager) InsertStack() error {
	if !m.stackActive {
		return ErrNoStack
	}
	tasks := m.stack
	m.DiscardStack()
	m.InsertMulti(tasks...)
	return nil
}

// DiscardStack closes the stack and drops its tasks.
func (m *Manager) DiscardStack() {
	m.stack = nil
	m.stackActive = false
}

// IsStackActive reports whether a stack is open.
func (m *Manager) IsStackActive() bool { return m.stackActive }
