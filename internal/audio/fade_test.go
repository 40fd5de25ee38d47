package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records volume writes.
type fakeChannel struct {
	volumes []float64
	busy    bool
	stopped bool
}

func (c *fakeChannel) SetVolume(v float64) { c.volumes = append(c.volumes, v) }
func (c *fakeChannel) IsBusy() bool        { return c.busy }
func (c *fakeChannel) Stop()               { c.stopped = true; c.busy = false }

func (c *fakeChannel) last() float64 {
	if len(c.volumes) == 0 {
		return -1
	}
	return c.volumes[len(c.volumes)-1]
}

type fakePlayer struct {
	ch  *fakeChannel
	err error
}

func (p *fakePlayer) Play() (Channel, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.ch = &fakeChannel{busy: true}
	return p.ch, nil
}

func startController(t *testing.T, totalFrames int, fps float64) (*Controller, *fakeChannel) {
	t.Helper()
	p := &fakePlayer{}
	c := NewController(p)
	c.Start(totalFrames, fps)
	require.Equal(t, FadeIn, c.State())
	require.NotNil(t, p.ch)
	require.Equal(t, 0.0, p.ch.volumes[0], "playback starts muted")
	return c, p.ch
}

func TestController_FullEnvelope(t *testing.T) {
	// fade 1.5s, 450 frames at 30 fps → 15s video, fade-out from 13.5s
	c, ch := startController(t, 450, 30)
	const fade = 1.5

	c.Update(0.5, fade)
	assert.Equal(t, FadeIn, c.State())
	assert.InDelta(t, 0.5/fade*DefaultTargetVolume, ch.last(), 1e-9)

	c.Update(1.5, fade)
	assert.Equal(t, FadeSteady, c.State())
	assert.Equal(t, DefaultTargetVolume, ch.last())

	c.Update(10, fade)
	assert.Equal(t, FadeSteady, c.State())

	c.Update(13.5, fade)
	assert.Equal(t, FadeOut, c.State())

	c.Update(14.25, fade)
	assert.InDelta(t, DefaultTargetVolume*0.5, ch.last(), 1e-9)

	c.Update(15, fade)
	assert.Equal(t, 0.0, ch.last())
	// fade-out completion does not auto-reset the state
	assert.Equal(t, FadeOut, c.State())
}

func TestController_VolumeBoundsAndMonotonicity(t *testing.T) {
	c, ch := startController(t, 450, 30)
	const fade = 1.5

	var fadeInVols, fadeOutVols []float64
	for e := 0.0; e <= 15.0; e += 0.1 {
		before := c.State()
		c.Update(e, fade)
		v := ch.last()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, DefaultTargetVolume)
		if before == FadeIn {
			fadeInVols = append(fadeInVols, v)
		}
		if c.State() == FadeOut {
			fadeOutVols = append(fadeOutVols, v)
		}
	}
	for i := 1; i < len(fadeInVols); i++ {
		assert.GreaterOrEqual(t, fadeInVols[i], fadeInVols[i-1], "fade-in must not decrease")
	}
	for i := 1; i < len(fadeOutVols); i++ {
		assert.LessOrEqual(t, fadeOutVols[i], fadeOutVols[i-1], "fade-out must not increase")
	}
}

func TestController_ChannelSilenceForcesIdle(t *testing.T) {
	c, ch := startController(t, 300, 30)
	c.Update(0.5, 1.5)
	require.Equal(t, FadeIn, c.State())

	ch.busy = false
	c.Update(0.6, 1.5)
	assert.Equal(t, FadeIdle, c.State())
}

func TestController_OverlappingFadeWindows(t *testing.T) {
	// 2s video with 1.5s fades: fade-out trigger at 0.5s, inside fade-in.
	c, _ := startController(t, 60, 30)
	c.Update(1.5, 1.5) // fade-in completes past the trigger point
	assert.Equal(t, FadeOut, c.State())
}

func TestController_PlayFailureStaysIdle(t *testing.T) {
	c := NewController(&fakePlayer{err: errors.New("device busy")})
	c.Start(300, 30)
	assert.Equal(t, FadeIdle, c.State())
	// no channel: updates are no-ops, not panics
	c.Update(1.0, 1.5)
	assert.Equal(t, FadeIdle, c.State())
}

func TestController_NilPlayerDisablesAudio(t *testing.T) {
	c := NewController(nil)
	c.Start(300, 30)
	assert.Equal(t, FadeIdle, c.State())
	c.Update(1.0, 1.5)
	c.StopImmediately()
	assert.Equal(t, FadeIdle, c.State())
}

func TestController_StartStopsPreviousInstance(t *testing.T) {
	p := &fakePlayer{}
	c := NewController(p)
	c.Start(300, 30)
	first := p.ch

	c.Start(600, 30)
	assert.True(t, first.stopped)
	assert.Equal(t, FadeIn, c.State())
}

func TestController_StopImmediately(t *testing.T) {
	c, ch := startController(t, 300, 30)
	c.StopImmediately()
	assert.True(t, ch.stopped)
	assert.Equal(t, FadeIdle, c.State())
}

func TestController_ClockSkewGuardClampsToTarget(t *testing.T) {
	c, ch := startController(t, 450, 30)
	c.Update(1.5, 1.5) // steady
	c.Update(13.5, 1.5)
	require.Equal(t, FadeOut, c.State())

	// elapsed stepping backwards before the trigger point
	c.Update(13.0, 1.5)
	assert.Equal(t, DefaultTargetVolume, ch.last())
}
