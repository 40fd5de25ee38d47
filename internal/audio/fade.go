// Package audio owns the kiosk soundtrack: a pure-Go decode path for the
// background track (MP4 container, AAC or Opus) and the fade controller
// that keeps its volume locked to the picture.
package audio

import "log/slog"

// FadeState is the volume envelope phase of the soundtrack channel.
type FadeState int

const (
	// FadeIdle means no content video is active or the channel is silent.
	FadeIdle FadeState = iota
	// FadeIn ramps volume up over the configured fade duration.
	FadeIn
	// FadeSteady holds the target volume until the fade-out trigger point.
	FadeSteady
	// FadeOut ramps volume down over the last fade duration of the video.
	FadeOut
)

func (s FadeState) String() string {
	switch s {
	case FadeIdle:
		return "idle"
	case FadeIn:
		return "fade-in"
	case FadeSteady:
		return "steady"
	case FadeOut:
		return "fade-out"
	default:
		return "unknown"
	}
}

// Channel is one playing soundtrack instance.
type Channel interface {
	SetVolume(v float64) // 0.0–1.0
	IsBusy() bool
	Stop()
}

// Player starts the soundtrack once (no looping) and hands back the
// channel to manage. A nil Player disables audio entirely.
type Player interface {
	Play() (Channel, error)
}

// DefaultTargetVolume matches the original installation's soundtrack level.
const DefaultTargetVolume = 0.7

// Controller drives one channel through FadeIn → FadeSteady → FadeOut,
// advanced purely by the video's elapsed time so sound stays on picture
// even under frame-rate jitter. Single-owner: only the playback loop
// calls it.
type Controller struct {
	player Player
	ch     Channel
	state  FadeState

	videoDuration float64 // seconds of the active content video
	targetVolume  float64
}

// NewController wires a controller to a player. player may be nil when
// audio is disabled for the session.
func NewController(player Player) *Controller {
	return &Controller{player: player, targetVolume: DefaultTargetVolume}
}

// State exposes the current fade phase.
func (c *Controller) State() FadeState {
	return c.state
}

// Start stops any playing instance and begins the soundtrack at volume 0
// for a content video of totalFrames/fps seconds. A failed start leaves
// the controller idle; volume management is skipped for that segment.
func (c *Controller) Start(totalFrames int, fps float64) {
	if c.player == nil {
		c.state = FadeIdle
		return
	}

	if c.ch != nil && c.ch.IsBusy() {
		c.ch.Stop()
		slog.Debug("audio: stopped previous soundtrack instance")
	}

	c.videoDuration = 0
	if fps > 0 {
		c.videoDuration = float64(totalFrames) / fps
	}

	ch, err := c.player.Play()
	if err != nil {
		slog.Error("audio: failed to start soundtrack", "error", err)
		c.ch = nil
		c.state = FadeIdle
		return
	}
	ch.SetVolume(0)
	c.ch = ch
	c.state = FadeIn
	slog.Info("audio: soundtrack started", "videoDuration", c.videoDuration)
}

// Update advances the envelope for the given video elapsed time.
// The channel's busy flag is the source of truth: if it falls silent
// while we think we are playing, the state is force-reset to idle.
//
// Fade-in completion and the fade-out trigger are evaluated in sequence
// every tick, so when 2*fadeDuration exceeds the video duration the two
// windows overlap and a fade-in may hand straight over to fade-out.
func (c *Controller) Update(elapsed, fadeDuration float64) {
	if c.ch == nil || !c.ch.IsBusy() {
		if c.state != FadeIdle {
			slog.Debug("audio: channel went silent, resetting", "state", c.state.String())
		}
		c.state = FadeIdle
		return
	}

	if c.state == FadeIn {
		if elapsed < fadeDuration {
			v := (elapsed / fadeDuration) * c.targetVolume
			c.ch.SetVolume(min(v, c.targetVolume))
		} else {
			c.ch.SetVolume(c.targetVolume)
			c.state = FadeSteady
		}
	}

	fadeOutStart := c.videoDuration - fadeDuration
	if c.state == FadeSteady && c.videoDuration > 0 && elapsed >= fadeOutStart {
		// no volume write here; the FadeOut branch computes it
		c.state = FadeOut
	}

	if c.state == FadeOut {
		t := elapsed - fadeOutStart
		switch {
		case t < 0:
			// clock skew guard
			c.ch.SetVolume(c.targetVolume)
		case t < fadeDuration:
			v := c.targetVolume * (1.0 - t/fadeDuration)
			c.ch.SetVolume(max(0, v))
		default:
			c.ch.SetVolume(0)
		}
	}
}

// StopImmediately hard-stops the channel regardless of state. Called on
// every idle transition and at shutdown.
func (c *Controller) StopImmediately() {
	if c.ch != nil && c.ch.IsBusy() {
		c.ch.Stop()
		slog.Info("audio: soundtrack stopped")
	}
	c.state = FadeIdle
}
