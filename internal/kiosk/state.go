// Package kiosk is the playback core: the phase state machine deciding
// which video should be showing, the session owning the open frame
// source, and the per-frame loop tying tag events, fades and the sound
// track together.
package kiosk

import (
	"fmt"
	"log/slog"

	"github.com/mtavella/tagplay/internal/video"
)

// Phase is the playback state machine. It replaces the pair of
// "previous was content" / "target is idle" booleans with one explicit
// enum, so the fade-in decision on load is a pure function of phase.
type Phase int

const (
	// PhaseLoadingIdleFresh: an idle load is pending and the previous
	// segment was idle too (startup, or the idle loop restarting).
	// The idle video starts at full brightness, without a fade flash.
	PhaseLoadingIdleFresh Phase = iota
	// PhaseLoadingIdleAfterContent: an idle load is pending after a
	// content video played (or a content load failed). Idle fades in.
	PhaseLoadingIdleAfterContent
	// PhaseLoadingContent: a content load is pending. Content always
	// fades in.
	PhaseLoadingContent
	// PhaseIdle: the idle video is on screen.
	PhaseIdle
	// PhasePlayingContent: a tag's video is on screen.
	PhasePlayingContent
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadingIdleFresh:
		return "loading-idle-fresh"
	case PhaseLoadingIdleAfterContent:
		return "loading-idle-after-content"
	case PhaseLoadingContent:
		return "loading-content"
	case PhaseIdle:
		return "idle"
	case PhasePlayingContent:
		return "playing-content"
	default:
		return "unknown"
	}
}

// FadeInOnLoad decides whether the upcoming load fades in from black.
// Content always fades; idle fades only when returning from content.
func FadeInOnLoad(p Phase) bool {
	return p != PhaseLoadingIdleFresh
}

// State is the playback loop's single-owner mutable state. It is never
// shared across goroutines; only the loop's decision step mutates it.
type State struct {
	Phase Phase

	// TargetPath is the video that should be playing; CurrentPath is
	// what is actually loaded. A mismatch is the sole reload trigger.
	TargetPath   string
	TargetIsIdle bool
	CurrentPath  string

	// ActiveTag is the tag whose video is loaded, valid when HasActiveTag.
	ActiveTag    uint64
	HasActiveTag bool
}

// NewState returns the startup state: idle targeted, nothing loaded,
// first idle load at full brightness.
func NewState(idlePath string) *State {
	return &State{
		Phase:        PhaseLoadingIdleFresh,
		TargetPath:   idlePath,
		TargetIsIdle: true,
	}
}

// InsertOutcome reports what an Inserted event did to the state.
type InsertOutcome int

const (
	// InsertIgnoredActive: the tag's video is already playing; re-scan
	// is a no-op (no reload, no fade restart).
	InsertIgnoredActive InsertOutcome = iota
	// InsertUnmapped: the tag resolves to no video; target unchanged.
	InsertUnmapped
	// InsertSwitch: the target switched to the tag's content video.
	InsertSwitch
)

// Policy is the transition decision engine. It owns no resources: it
// reads the library and rewrites State, nothing else.
type Policy struct {
	library *video.Library
}

// NewPolicy creates a policy over the startup-built video library.
func NewPolicy(library *video.Library) *Policy {
	return &Policy{library: library}
}

// OnInserted merges a valid tag read into the state.
func (p *Policy) OnInserted(s *State, tagID uint64) InsertOutcome {
	if s.HasActiveTag && s.ActiveTag == tagID {
		slog.Debug("kiosk: tag already active, ignoring re-scan", "tag", hexTag(tagID))
		return InsertIgnoredActive
	}
	path, ok := p.library.Resolve(tagID)
	if !ok {
		slog.Info("kiosk: tag not mapped to a video", "tag", hexTag(tagID))
		return InsertUnmapped
	}
	slog.Info("kiosk: switching to tag video", "tag", hexTag(tagID), "path", path)
	s.TargetPath = path
	s.TargetIsIdle = false
	s.Phase = PhaseLoadingContent
	return InsertSwitch
}

// OnLoaded records a successful load of the current target.
func (p *Policy) OnLoaded(s *State) {
	s.CurrentPath = s.TargetPath
	if s.TargetIsIdle {
		s.ActiveTag = 0
		s.HasActiveTag = false
		s.Phase = PhaseIdle
		return
	}
	if tag, ok := p.library.TagFor(s.TargetPath); ok {
		s.ActiveTag = tag
		s.HasActiveTag = true
	} else {
		s.ActiveTag = 0
		s.HasActiveTag = false
	}
	s.Phase = PhasePlayingContent
}

// OnEnded handles natural end-of-stream and read errors identically:
// the target reverts to idle, fading in only after content.
func (p *Policy) OnEnded(s *State) {
	if s.HasActiveTag {
		s.Phase = PhaseLoadingIdleAfterContent
	} else {
		s.Phase = PhaseLoadingIdleFresh
	}
	p.revertToIdle(s)
}

// OnLoadFailed forces a fallback to idle after a failed open. The next
// idle load fades in when the failed target was content.
func (p *Policy) OnLoadFailed(s *State) {
	if !s.TargetIsIdle {
		s.Phase = PhaseLoadingIdleAfterContent
	} else {
		s.Phase = PhaseLoadingIdleFresh
	}
	p.revertToIdle(s)
}

func (p *Policy) revertToIdle(s *State) {
	s.TargetPath = p.library.IdlePath()
	s.TargetIsIdle = true
	s.ActiveTag = 0
	s.HasActiveTag = false
	s.CurrentPath = "" // force the reload check to fire
}

func hexTag(id uint64) string {
	return fmt.Sprintf("%#x", id)
}
