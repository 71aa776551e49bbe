package taskmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(tasks []*Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name)
	}
	return out
}

func TestStack_InsertStack(t *testing.T) {
	h := newHarness(t)

	h.m.Enqueue(NewTask(result(Succeeded), WithName("queued")))

	require.NoError(t, h.m.BeginStack())
	assert.True(t, h.m.IsStackActive())
	assert.ErrorIs(t, h.m.BeginStack(), ErrStackActive)

	h.m.Enqueue(NewTask(result(Succeeded), WithName("s1")))
	h.m.Enqueue(NewTask(result(Succeeded), WithName("s2")))
	h.m.Insert(NewTask(result(Succeeded), WithName("s0")))
	assert.Equal(t, []string{"queued"}, names(h.m.Tasks()), "stacked tasks are held back")

	require.NoError(t, h.m.InsertStack())
	assert.False(t, h.m.IsStackActive())
	assert.Equal(t, []string{"s0", "s1", "s2", "queued"}, names(h.m.Tasks()))
}

func TestStack_InsertWithoutStack(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.m.InsertStack(), ErrNoStack)
}

func TestStack_Discard(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.BeginStack())
	h.m.Enqueue(NewTask(result(Succeeded)))
	h.m.DiscardStack()

	assert.False(t, h.m.IsStackActive())
	assert.False(t, h.m.IsBusy())
	assert.ErrorIs(t, h.m.InsertStack(), ErrNoStack)
}

func TestStack_FromTaskBody(t *testing.T) {
	h := newHarness(t)

	var order []string
	h.m.Enqueue(NewTask(func() (Result, error) {
		order = append(order, "parent")
		if err := h.m.BeginStack(); err != nil {
			return Continue, err
		}
		h.m.Enqueue(Action(func() { order = append(order, "child-1") }))
		h.m.Enqueue(Action(func() { order = append(order, "child-2") }))
		return Succeeded, h.m.InsertStack()
	}))
	h.m.Enqueue(Action(func() { order = append(order, "sibling") }))

	h.src.fireN(5)

	assert.Equal(t, []string{"parent", "child-1", "child-2", "sibling"}, order)
}

func TestStack_AbortDiscardsStack(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.BeginStack())
	h.m.Abort()

	assert.False(t, h.m.IsStackActive())
}
