package audio

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// Mixer plays one Track through a Sink, one instance at a time per Play
// call. It implements Player. Volume is applied per sample on the way to
// the sink, so SetVolume takes effect within one chunk (~100 ms).
type Mixer struct {
	track *Track
	sink  Sink
}

// NewMixer binds a decoded track to an output sink.
func NewMixer(track *Track, sink Sink) *Mixer {
	return &Mixer{track: track, sink: sink}
}

// Play starts the track once from the beginning and returns the channel
// controlling this instance.
func (m *Mixer) Play() (Channel, error) {
	w, err := m.sink.Open(m.track.rate)
	if err != nil {
		return nil, err
	}

	ch := &pcmChannel{
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	ch.SetVolume(0)

	go ch.pump(m.track, w)
	return ch, nil
}

// pcmChannel is one playing instance: a goroutine streaming scaled
// samples into the sink writer.
type pcmChannel struct {
	volume   atomic.Uint64 // math.Float64bits
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// chunkSamples is how many samples are scaled and written per iteration.
// The sink's own buffering paces the writes; a tenth of a second keeps
// volume changes responsive without busy-writing.
func chunkSamples(rate int) int {
	n := rate / 10
	if n < 1 {
		n = 1
	}
	return n
}

func (c *pcmChannel) pump(t *Track, w io.WriteCloser) {
	defer close(c.done)
	defer w.Close()

	chunk := chunkSamples(t.rate)
	buf := make([]byte, chunk*2)

	for off := 0; off < len(t.pcm); off += chunk {
		select {
		case <-c.stop:
			return
		default:
		}

		end := min(off+chunk, len(t.pcm))
		vol := c.Volume()
		n := 0
		for _, s := range t.pcm[off:end] {
			v := s * float32(vol)
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint16(buf[n:], uint16(int16(v*32767)))
			n += 2
		}
		if _, err := w.Write(buf[:n]); err != nil {
			slog.Debug("audio: sink write ended playback", "error", err)
			return
		}
	}
}

// SetVolume sets the playback volume, clamped to [0, 1].
func (c *pcmChannel) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	c.volume.Store(math.Float64bits(v))
}

// Volume returns the current volume.
func (c *pcmChannel) Volume() float64 {
	return math.Float64frombits(c.volume.Load())
}

// IsBusy reports whether this instance is still producing sound.
func (c *pcmChannel) IsBusy() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stop ends playback. Idempotent; returns without waiting for the pump
// goroutine's final write to unwind.
func (c *pcmChannel) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
