package video_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtavella/tagplay/internal/video"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestNewLibrary_DropsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "idle.mp4")
	touch(t, dir, "one.mp4")

	lib, err := video.NewLibrary(dir, "idle.mp4", map[uint64]string{
		0x1A2: "one.mp4",
		0xBEE: "missing.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, lib.Len())
	path, ok := lib.Resolve(0x1A2)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "one.mp4"), path)

	_, ok = lib.Resolve(0xBEE)
	assert.False(t, ok)
}

func TestNewLibrary_MissingMediaDirFatal(t *testing.T) {
	_, err := video.NewLibrary(filepath.Join(t.TempDir(), "nope"), "idle.mp4", nil)
	assert.Error(t, err)
}

func TestNewLibrary_MissingIdleFatal(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "one.mp4")
	_, err := video.NewLibrary(dir, "idle.mp4", map[uint64]string{1: "one.mp4"})
	assert.Error(t, err)
}

func TestLibrary_TagFor(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "idle.mp4")
	touch(t, dir, "one.mp4")

	lib, err := video.NewLibrary(dir, "idle.mp4", map[uint64]string{0x1A2: "one.mp4"})
	require.NoError(t, err)

	id, ok := lib.TagFor(filepath.Join(dir, "one.mp4"))
	require.True(t, ok)
	assert.Equal(t, uint64(0x1A2), id)

	_, ok = lib.TagFor(lib.IdlePath())
	assert.False(t, ok)
}
