package taskmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DisposeAll(t *testing.T) {
	reg := NewRegistry()
	src := newFakeSource()

	a, err := New(src, WithRegistry(reg), WithLabel("a"), WithLogger(discardLogger()))
	require.NoError(t, err)
	b, err := New(src, WithRegistry(reg), WithLabel("b"), WithLogger(discardLogger()))
	require.NoError(t, err)
	a.Enqueue(NewTask(result(Continue)))

	assert.Equal(t, 2, reg.Len())
	assert.ElementsMatch(t, []*Manager{a, b}, reg.Managers())

	assert.Equal(t, 2, reg.DisposeAll())
	assert.True(t, a.Disposed())
	assert.True(t, b.Disposed())
	assert.False(t, a.IsBusy())
	assert.Empty(t, src.subs)
	assert.Zero(t, reg.DisposeAll())
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	reg := NewRegistry()
	m, err := New(nil, WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.False(t, reg.remove(m))
	reg.add(m)
	assert.True(t, reg.remove(m))
}
