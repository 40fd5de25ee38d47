// Package render puts decoded frames on a full-screen window. It shells
// out to ffplay, which owns the display and the quit keys (q, ESC);
// when the viewer process exits the Done channel closes and the
// playback loop winds down.
package render

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/mtavella/tagplay/internal/video"
)

// Window is a kiosk display backed by one ffplay child at a time.
// Prepare respawns the child whenever the stream geometry changes, so a
// 25 fps idle clip and a 30 fps content clip can share the screen.
type Window struct {
	title string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	meta   video.Meta
	done   chan struct{}
	closed bool
}

// NewWindow creates an unopened window. The first Prepare spawns the
// viewer.
func NewWindow(title string) *Window {
	return &Window{title: title, done: make(chan struct{})}
}

// Prepare makes the window able to show frames with the given
// properties, restarting the viewer if they changed.
func (w *Window) Prepare(meta video.Meta) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("render: window is closed")
	}
	if w.cmd != nil && meta.Width == w.meta.Width && meta.Height == w.meta.Height && meta.FPS == w.meta.FPS {
		return nil
	}
	w.stopLocked()
	return w.spawnLocked(meta)
}

func (w *Window) spawnLocked(meta video.Meta) error {
	cmd := exec.Command("ffplay",
		"-hide_banner", "-loglevel", "error",
		"-fs",
		"-window_title", w.title,
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"-framerate", strconv.FormatFloat(meta.FPS, 'f', -1, 64),
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("render: ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("render: start ffplay: %w", err)
	}
	w.cmd = cmd
	w.stdin = stdin
	w.meta = meta

	// The operator quitting the viewer is a clean shutdown request.
	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.cmd != cmd {
			// superseded by a respawn, nothing to report
			return
		}
		w.cmd = nil
		w.stdin = nil
		if !w.closed {
			slog.Info("render: display window exited", "error", err)
			w.closed = true
			close(w.done)
		}
	}()
	return nil
}

// Present writes one BGR24 frame to the viewer.
func (w *Window) Present(f *video.Frame) error {
	w.mu.Lock()
	stdin := w.stdin
	w.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("render: no display window")
	}
	if _, err := stdin.Write(f.Data); err != nil {
		return fmt.Errorf("render: write frame: %w", err)
	}
	return nil
}

// Done is closed when the window goes away, either because the operator
// quit the viewer or Close was called.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

// Close tears down the viewer. Idempotent.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	w.stopLocked()
	return nil
}

func (w *Window) stopLocked() {
	if w.cmd == nil {
		return
	}
	cmd := w.cmd
	w.cmd = nil
	if w.stdin != nil {
		w.stdin.Close()
		w.stdin = nil
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	// the Wait goroutine reaps the child
}
