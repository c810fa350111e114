package reboot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLatchIdempotent(t *testing.T) {
	l := NewFileLatch(filepath.Join(t.TempDir(), "state"))
	assert.False(t, l.IsScheduled())

	l.Schedule()
	l.Schedule()
	assert.True(t, l.IsScheduled())

	require.NoError(t, l.Clear())
	assert.False(t, l.IsScheduled())
	require.NoError(t, l.Clear())
}

func TestFileLatchVisibleToOtherInstances(t *testing.T) {
	dir := t.TempDir()
	NewFileLatch(dir).Schedule()

	var other Latch = NewFileLatch(dir)
	assert.True(t, other.IsScheduled())
}

func TestFileLatchScheduleNeverPanics(t *testing.T) {
	l := &FileLatch{Path: string([]byte{0})}
	assert.NotPanics(t, l.Schedule)
	assert.False(t, l.IsScheduled())
}
