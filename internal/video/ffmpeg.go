package video

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// ffmpegSource decodes one file to raw BGR24 frames over a pipe.
// Exclusive ownership: one process per source, killed on Close.
type ffmpegSource struct {
	path   string
	meta   Meta
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	frame  Frame
	closed bool
}

// OpenFFmpeg probes the file and starts an ffmpeg child emitting raw
// frames on stdout. It satisfies the Opener signature.
func OpenFFmpeg(path string) (Source, error) {
	meta, err := Probe(path)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-an",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("video: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("video: start ffmpeg for %s: %w", path, err)
	}

	size := meta.Width * meta.Height * 3
	return &ffmpegSource{
		path:   path,
		meta:   meta,
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, size),
		frame: Frame{
			Data:   make([]byte, size),
			Width:  meta.Width,
			Height: meta.Height,
		},
	}, nil
}

func (s *ffmpegSource) Meta() Meta {
	return s.meta
}

// ReadFrame fills the reusable frame buffer with the next picture.
// A short read (stream end or decoder death) returns nil.
func (s *ffmpegSource) ReadFrame() *Frame {
	if s.closed {
		return nil
	}
	if _, err := io.ReadFull(s.reader, s.frame.Data); err != nil {
		if err != io.EOF {
			slog.Debug("video: frame read ended", "path", s.path, "error", err)
		}
		return nil
	}
	return &s.frame
}

func (s *ffmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	// Wait reaps the child; the error is expected after Kill.
	_ = s.cmd.Wait()
	return nil
}
