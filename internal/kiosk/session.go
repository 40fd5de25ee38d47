package kiosk

import (
	"math"

	"github.com/mtavella/tagplay/internal/video"
)

// defaultFPS guards against containers whose metadata reports 0 fps.
const defaultFPS = 25

// Session owns at most one open frame source and computes the picture
// fade-in for the current segment. Loading a new video always releases
// the previous source first, so no decoder handle dangles.
type Session struct {
	open        video.Opener
	fadeSeconds float64

	src          video.Source
	meta         video.Meta
	fadeInFrames int
	frameCount   int
	alpha        float64
}

// NewSession creates a session that opens sources through open.
func NewSession(open video.Opener, fadeSeconds float64) *Session {
	return &Session{open: open, fadeSeconds: fadeSeconds}
}

// Load replaces the open source with path. The fade-in frame budget is
// recomputed on every load because fps may differ between videos; when
// fadeIn is false the frame counter is preset past the threshold so the
// first frame shows at full brightness.
func (s *Session) Load(path string, fadeIn bool) (video.Meta, error) {
	s.Close()

	src, err := s.open(path)
	if err != nil {
		return video.Meta{}, err
	}

	meta := src.Meta()
	if meta.FPS == 0 {
		meta.FPS = defaultFPS
	}

	s.src = src
	s.meta = meta
	s.fadeInFrames = int(math.Round(s.fadeSeconds * meta.FPS))
	if fadeIn {
		s.frameCount = 0
	} else {
		s.frameCount = s.fadeInFrames + 1
	}
	s.alpha = FadeAlpha(s.frameCount, s.fadeInFrames)
	return meta, nil
}

// IsOpen reports whether a source is loaded.
func (s *Session) IsOpen() bool {
	return s.src != nil
}

// Meta returns the current source's properties (fps already remapped).
func (s *Session) Meta() video.Meta {
	return s.meta
}

// ReadFrame returns the next frame or nil on end-of-stream/read error.
// Each delivered frame advances the segment's frame counter and fixes
// the alpha that ApplyFade uses for it.
func (s *Session) ReadFrame() *video.Frame {
	if s.src == nil {
		return nil
	}
	f := s.src.ReadFrame()
	if f == nil {
		return nil
	}
	s.alpha = FadeAlpha(s.frameCount, s.fadeInFrames)
	s.frameCount++
	return f
}

// Alpha is the fade factor of the last frame returned by ReadFrame.
func (s *Session) Alpha() float64 {
	return s.alpha
}

// Elapsed is the video time in seconds consumed so far in this segment.
func (s *Session) Elapsed() float64 {
	if s.meta.FPS <= 0 {
		return 0
	}
	return float64(s.frameCount) / s.meta.FPS
}

// ApplyFade composites the frame over black in place:
// out = frame*alpha + black*(1-alpha). Once the fade has completed the
// frame passes through untouched to skip the per-frame blend cost.
func (s *Session) ApplyFade(f *video.Frame) {
	if s.alpha >= 1 {
		return
	}
	scale := uint32(s.alpha * 256)
	for i, v := range f.Data {
		f.Data[i] = byte(uint32(v) * scale >> 8)
	}
}

// Close releases the open source, if any. Idempotent.
func (s *Session) Close() {
	if s.src != nil {
		_ = s.src.Close()
		s.src = nil
	}
}

// FadeAlpha is the fade-in opacity for a frame index:
// min(frameCount/fadeInFrames, 1), and 1 when no fade budget exists.
func FadeAlpha(frameCount, fadeInFrames int) float64 {
	if fadeInFrames <= 0 || frameCount >= fadeInFrames {
		return 1
	}
	if frameCount <= 0 {
		return 0
	}
	return float64(frameCount) / float64(fadeInFrames)
}
