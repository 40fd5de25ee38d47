package kiosk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtavella/tagplay/internal/video"
)

func testLibrary(t *testing.T) *video.Library {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"idle.mp4", "one.mp4", "two.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	lib, err := video.NewLibrary(dir, "idle.mp4", map[uint64]string{
		0x1A2: "one.mp4",
		0x2B3: "two.mp4",
	})
	require.NoError(t, err)
	return lib
}

func TestNewState_TargetsIdleFresh(t *testing.T) {
	st := NewState("/media/idle.mp4")
	assert.Equal(t, PhaseLoadingIdleFresh, st.Phase)
	assert.Equal(t, "/media/idle.mp4", st.TargetPath)
	assert.True(t, st.TargetIsIdle)
	assert.False(t, FadeInOnLoad(st.Phase), "fresh idle must not fade in")
}

func TestPolicy_UnmappedTagLeavesTargetUnchanged(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	outcome := p.OnInserted(st, 0xDEAD)
	assert.Equal(t, InsertUnmapped, outcome)
	assert.Equal(t, lib.IdlePath(), st.TargetPath)
	assert.True(t, st.TargetIsIdle)
	assert.Equal(t, PhaseLoadingIdleFresh, st.Phase)
}

func TestPolicy_MappedTagSwitchesTarget(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	outcome := p.OnInserted(st, 0x1A2)
	assert.Equal(t, InsertSwitch, outcome)
	assert.False(t, st.TargetIsIdle)
	assert.Equal(t, PhaseLoadingContent, st.Phase)
	assert.True(t, FadeInOnLoad(st.Phase), "content always fades in")

	want, _ := lib.Resolve(0x1A2)
	assert.Equal(t, want, st.TargetPath)
}

func TestPolicy_ReinsertingActiveTagIsNoOp(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	p.OnInserted(st, 0x1A2)
	p.OnLoaded(st)
	require.Equal(t, PhasePlayingContent, st.Phase)
	require.True(t, st.HasActiveTag)

	outcome := p.OnInserted(st, 0x1A2)
	assert.Equal(t, InsertIgnoredActive, outcome)
	assert.Equal(t, PhasePlayingContent, st.Phase, "no reload, no fade restart")
}

func TestPolicy_SwitchingBetweenContentVideos(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	p.OnInserted(st, 0x1A2)
	p.OnLoaded(st)
	outcome := p.OnInserted(st, 0x2B3)
	assert.Equal(t, InsertSwitch, outcome)

	want, _ := lib.Resolve(0x2B3)
	assert.Equal(t, want, st.TargetPath)
	assert.Equal(t, PhaseLoadingContent, st.Phase)
}

func TestPolicy_ContentEndRevertsToIdleWithFade(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	p.OnInserted(st, 0x1A2)
	p.OnLoaded(st)
	p.OnEnded(st)

	assert.Equal(t, PhaseLoadingIdleAfterContent, st.Phase)
	assert.True(t, FadeInOnLoad(st.Phase), "idle after content fades in")
	assert.Equal(t, lib.IdlePath(), st.TargetPath)
	assert.True(t, st.TargetIsIdle)
	assert.False(t, st.HasActiveTag)
	assert.Empty(t, st.CurrentPath, "reload must be forced")
}

func TestPolicy_IdleLoopRestartsWithoutFade(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	p.OnLoaded(st)
	require.Equal(t, PhaseIdle, st.Phase)

	p.OnEnded(st)
	assert.Equal(t, PhaseLoadingIdleFresh, st.Phase)
	assert.False(t, FadeInOnLoad(st.Phase), "no fade flash on idle loop restart")
}

func TestPolicy_ContentLoadFailureFallsBackWithFade(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	p.OnInserted(st, 0x1A2)
	p.OnLoadFailed(st)

	assert.Equal(t, PhaseLoadingIdleAfterContent, st.Phase)
	assert.Equal(t, lib.IdlePath(), st.TargetPath)
	assert.True(t, st.TargetIsIdle)
}

func TestPolicy_IdleLoadFailureStaysFresh(t *testing.T) {
	lib := testLibrary(t)
	p := NewPolicy(lib)
	st := NewState(lib.IdlePath())

	p.OnLoadFailed(st)
	assert.Equal(t, PhaseLoadingIdleFresh, st.Phase)
	assert.False(t, FadeInOnLoad(st.Phase))
}
