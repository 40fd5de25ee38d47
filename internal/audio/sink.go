package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// Sink opens a PCM output for one playback instance. The returned writer
// accepts mono S16LE samples at the given rate and applies backpressure
// at playback speed; closing it ends the instance.
type Sink interface {
	Open(sampleRate int) (io.WriteCloser, error)
}

// ExecSink plays PCM through an external player process on a pipe,
// aplay by default.
type ExecSink struct {
	Command string // player binary, "aplay" if empty
}

type execWriter struct {
	io.WriteCloser
	cmd *exec.Cmd
}

func (w *execWriter) Close() error {
	err := w.WriteCloser.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
	return err
}

// Open starts the player process reading mono S16LE from stdin.
func (s *ExecSink) Open(sampleRate int) (io.WriteCloser, error) {
	command := s.Command
	if command == "" {
		command = "aplay"
	}
	cmd := exec.Command(command,
		"-q",
		"-f", "S16_LE",
		"-c", "1",
		"-r", strconv.Itoa(sampleRate),
		"-t", "raw",
		"-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: %s stdin pipe: %w", command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start %s: %w", command, err)
	}
	return &execWriter{WriteCloser: stdin, cmd: cmd}, nil
}
