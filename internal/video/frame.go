// Package video provides the kiosk's frame source: MP4 metadata probing
// via abema/go-mp4 and raw frame decoding through an ffmpeg pipe, plus
// the startup-built tag→video library.
package video

// Meta describes an opened video stream.
type Meta struct {
	FPS         float64
	Width       int
	Height      int
	TotalFrames int
}

// Duration returns the stream length in seconds, 0 when FPS is invalid.
func (m Meta) Duration() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.TotalFrames) / m.FPS
}

// Frame is one decoded picture in packed BGR24 order (3 bytes per pixel,
// row-major). Data is owned by the producing Source and only valid until
// the next ReadFrame call.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Source yields decoded frames from one open video file.
type Source interface {
	// Meta reports the stream properties read at open time.
	Meta() Meta
	// ReadFrame returns the next frame, or nil at end-of-stream.
	// Read errors are indistinguishable from end-of-stream on purpose:
	// the caller reacts identically to both (reload as idle).
	ReadFrame() *Frame
	// Close releases the decoder. Idempotent.
	Close() error
}

// Opener opens a video file as a frame source.
type Opener func(path string) (Source, error)
