package history_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtavella/tagplay/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return history.NewStore(db)
}

func TestStore_RecordsScans(t *testing.T) {
	store := openStore(t)

	store.RecordScan(0x1A2, true, true)
	store.RecordScan(0xBEEF, true, false)
	store.RecordScan(0x0, false, false)

	scans, err := store.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, scans, 3)

	// newest first
	assert.Equal(t, "0x0", scans[0].Tag)
	assert.False(t, scans[0].Valid)
	assert.Equal(t, "0xBEEF", scans[1].Tag)
	assert.True(t, scans[1].Valid)
	assert.False(t, scans[1].Mapped)
	assert.Equal(t, "0x1A2", scans[2].Tag)
	assert.True(t, scans[2].Mapped)

	for _, sc := range scans {
		assert.Equal(t, store.BootID(), sc.BootID)
	}
}

func TestStore_SegmentLifecycle(t *testing.T) {
	store := openStore(t)

	id := store.SegmentStarted("/media/one.mp4", false, 0x1A2, true)
	require.GreaterOrEqual(t, id, int64(0))

	open, err := store.RecentSegments(10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "/media/one.mp4", open[0].Path)
	assert.Equal(t, "0x1A2", open[0].Tag)
	assert.False(t, open[0].IsIdle)
	assert.Nil(t, open[0].EndedAt)

	store.SegmentEnded(id, "ended")

	closed, err := store.RecentSegments(10)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "ended", closed[0].Reason)
	require.NotNil(t, closed[0].EndedAt)
}

func TestStore_IdleSegmentHasNoTag(t *testing.T) {
	store := openStore(t)

	id := store.SegmentStarted("/media/idle.mp4", true, 0, false)
	store.SegmentEnded(id, "switched")

	segments, err := store.RecentSegments(10)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.True(t, segments[0].IsIdle)
	assert.Empty(t, segments[0].Tag)
}

func TestStore_SegmentEndedIgnoresFailedID(t *testing.T) {
	store := openStore(t)
	store.SegmentEnded(-1, "ended")

	segments, err := store.RecentSegments(10)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestStore_RecentLimits(t *testing.T) {
	store := openStore(t)
	for i := 0; i < 5; i++ {
		store.RecordScan(uint64(i), true, true)
	}
	scans, err := store.RecentScans(2)
	require.NoError(t, err)
	assert.Len(t, scans, 2)
	assert.Equal(t, "0x4", scans[0].Tag)
}
