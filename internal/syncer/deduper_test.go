package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduperTryApplyOnce(t *testing.T) {
	d := NewDeduper(24 * time.Hour)
	now := time.UnixMilli(1_700_000_000_000)

	assert.True(t, d.TryApply("key-1", now))
	assert.False(t, d.TryApply("key-1", now))
	assert.False(t, d.TryApply("key-1", now.Add(time.Hour)))
	assert.True(t, d.TryApply("key-2", now))
	assert.Equal(t, 2, d.Len())
}

func TestDeduperPurgeHorizon(t *testing.T) {
	d := NewDeduper(24 * time.Hour)
	now := time.UnixMilli(1_700_000_000_000)

	require.True(t, d.TryApply("old", now))
	require.True(t, d.TryApply("fresh", now.Add(23*time.Hour)))

	purged := d.Purge(now.Add(25 * time.Hour))
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1, d.Len())

	// once forgotten, the key applies again
	assert.True(t, d.TryApply("old", now.Add(25*time.Hour)))
}

func TestDeduperSnapshotRoundTrip(t *testing.T) {
	d := NewDeduper(24 * time.Hour)
	now := time.UnixMilli(1_700_000_000_000)
	require.True(t, d.TryApply("key-1", now))
	require.True(t, d.TryApply("key-2", now))

	data, err := d.MarshalSnapshot()
	require.NoError(t, err)

	restored := NewDeduper(24 * time.Hour)
	require.NoError(t, restored.RestoreSnapshot(data))

	assert.False(t, restored.TryApply("key-1", now))
	assert.False(t, restored.TryApply("key-2", now))
	assert.True(t, restored.TryApply("key-3", now))
}
