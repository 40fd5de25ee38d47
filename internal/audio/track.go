package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	gomp4 "github.com/abema/go-mp4"
	concentus "github.com/lostromb/concentus/go/opus"
	aacdecoder "github.com/skrashevich/go-aac/pkg/decoder"
)

// maxTrackSeconds caps how much soundtrack is decoded into memory.
// Kiosk soundtracks are short stings; ten minutes is far beyond any
// installation we have seen.
const maxTrackSeconds = 600

// Track is a fully decoded soundtrack: mono float32 PCM ready to be
// volume-scaled at play time. Immutable after load.
type Track struct {
	pcm  []float32
	rate int
}

// SampleRate returns the PCM sample rate in Hz.
func (t *Track) SampleRate() int {
	return t.rate
}

// Duration returns the decoded length.
func (t *Track) Duration() time.Duration {
	if t.rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(t.pcm)) / float64(t.rate) * float64(time.Second))
}

// LoadTrack decodes an MP4/M4A soundtrack (AAC or Opus) to PCM.
// All decoding is pure Go, with no CGo and no external tools.
func LoadTrack(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	pcm, rate, err := extractPCM(f)
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio: no samples decoded from %s", path)
	}

	t := &Track{pcm: pcm, rate: rate}
	slog.Info("audio: soundtrack loaded", "path", path, "duration", t.Duration().Round(10*time.Millisecond), "rate", rate)
	return t, nil
}

// ── Container handling ──────────────────────────────────

// trackCodec identifies the audio coding format inside the container.
type trackCodec int

const (
	codecUnknown trackCodec = iota
	codecAAC
	codecOpus
)

// detectCodec walks the MP4 box tree for an mp4a (AAC) or Opus sample
// entry. go-mp4's Probe leaves Opus untagged, so we inspect the stsd
// children ourselves, never expanding mdat.
func detectCodec(rs io.ReadSeeker) trackCodec {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return codecUnknown
	}
	codec := codecUnknown
	_, _ = gomp4.ReadBoxStructure(rs, func(h *gomp4.ReadHandle) (interface{}, error) {
		if codec != codecUnknown {
			return nil, nil
		}
		switch h.BoxInfo.Type {
		case gomp4.BoxTypeMp4a():
			codec = codecAAC
		case gomp4.BoxTypeOpus():
			codec = codecOpus
		case gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(),
			gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), gomp4.BoxTypeStsd():
			_, _ = h.Expand()
		}
		return nil, nil
	})
	return codec
}

// extractPCM probes the container, locates the audio track, and decodes
// it to mono float32 PCM.
func extractPCM(rs io.ReadSeeker) ([]float32, int, error) {
	info, err := gomp4.Probe(rs)
	if err != nil {
		return nil, 0, fmt.Errorf("mp4 probe: %w", err)
	}

	codec := detectCodec(rs)
	track, err := findAudioTrack(info, codec)
	if err != nil {
		return nil, 0, err
	}

	switch codec {
	case codecAAC:
		return decodeAAC(rs, track)
	case codecOpus:
		return decodeOpus(rs, track)
	default:
		return nil, 0, fmt.Errorf("unsupported audio codec")
	}
}

// findAudioTrack picks the audio track from the probe results.
func findAudioTrack(info *gomp4.ProbeInfo, codec trackCodec) (*gomp4.Track, error) {
	if codec == codecAAC {
		for _, t := range info.Tracks {
			if t.Codec == gomp4.CodecMP4A {
				return t, nil
			}
		}
	}
	for _, t := range info.Tracks {
		if t.Codec == gomp4.CodecAVC1 {
			continue
		}
		if len(t.Samples) == 0 || len(t.Chunks) == 0 {
			continue
		}
		if isAudioTimescale(t.Timescale) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no audio track found (%d tracks)", len(info.Tracks))
}

// isAudioTimescale reports whether ts is a standard audio sample rate.
func isAudioTimescale(ts uint32) bool {
	switch ts {
	case 8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000:
		return true
	}
	return false
}

// ── Decoders ────────────────────────────────────────────

func decodeAAC(rs io.ReadSeeker, track *gomp4.Track) ([]float32, int, error) {
	asc, err := audioSpecificConfig(rs)
	if err != nil {
		return nil, 0, fmt.Errorf("read AudioSpecificConfig: %w", err)
	}

	dec := aacdecoder.New()
	if err := dec.SetASC(asc); err != nil {
		return nil, 0, fmt.Errorf("configure AAC decoder: %w", err)
	}

	rate := int(track.Timescale)
	if dec.Config.SampleRate > 0 {
		rate = dec.Config.SampleRate
	}
	channels := dec.Config.ChanConfig
	if channels < 1 {
		channels = 1
	}

	maxSamples := rate * maxTrackSeconds
	mono := make([]float32, 0, min(maxSamples, len(track.Samples)*1024))

	err = eachSample(rs, track, func(raw []byte) bool {
		pcm, err := dec.DecodeFrame(raw)
		if err != nil {
			slog.Debug("audio: skipping undecodable AAC frame", "error", err)
			return true
		}
		frameLen := len(pcm) / channels
		for i := 0; i < frameLen; i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += pcm[i*channels+ch]
			}
			mono = append(mono, sum/float32(channels))
		}
		return len(mono) < maxSamples
	})
	return mono, rate, err
}

func decodeOpus(rs io.ReadSeeker, track *gomp4.Track) ([]float32, int, error) {
	// Concentus accepts 8/12/16/24/48 kHz output rates only.
	rate := int(track.Timescale)
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		rate = 48000
	}

	dec, err := concentus.NewOpusDecoder(rate, 2)
	if err != nil {
		return nil, 0, fmt.Errorf("create Opus decoder: %w", err)
	}

	maxSamples := rate * maxTrackSeconds
	mono := make([]float32, 0, min(maxSamples, len(track.Samples)*960))

	// 120 ms at 48 kHz stereo, the largest legal Opus frame.
	pcm16 := make([]int16, 5760*2)

	err = eachSample(rs, track, func(raw []byte) bool {
		// ≤3-byte packets are padding/silence the decoder rejects
		if len(raw) <= 3 {
			return true
		}
		n, err := dec.Decode(raw, 0, len(raw), pcm16, 0, 5760, false)
		if err != nil {
			slog.Debug("audio: skipping undecodable Opus frame", "error", err)
			return true
		}
		for i := 0; i < n; i++ {
			l := float32(pcm16[i*2]) / 32768.0
			r := float32(pcm16[i*2+1]) / 32768.0
			mono = append(mono, (l+r)/2)
		}
		return len(mono) < maxSamples
	})
	return mono, rate, err
}

// eachSample walks the track's chunk table and hands every raw sample to
// fn in file order. fn returns false to stop early.
func eachSample(rs io.ReadSeeker, track *gomp4.Track, fn func(raw []byte) bool) error {
	var maxSize uint32
	for _, s := range track.Samples {
		if s.Size > maxSize {
			maxSize = s.Size
		}
	}
	buf := make([]byte, maxSize)

	idx := 0
	for _, chunk := range track.Chunks {
		off := chunk.DataOffset
		for j := uint32(0); j < chunk.SamplesPerChunk; j++ {
			if idx >= len(track.Samples) {
				return nil
			}
			size := track.Samples[idx].Size
			idx++
			raw := buf[:size]
			if _, err := rs.Seek(int64(off), io.SeekStart); err != nil {
				return fmt.Errorf("seek sample: %w", err)
			}
			off += uint64(size)
			if _, err := io.ReadFull(rs, raw); err != nil {
				return fmt.Errorf("read sample: %w", err)
			}
			if !fn(raw) {
				return nil
			}
		}
	}
	return nil
}

// audioSpecificConfig finds the esds descriptor carrying the ASC bytes
// the AAC decoder needs.
func audioSpecificConfig(rs io.ReadSeeker) ([]byte, error) {
	paths := []gomp4.BoxPath{
		{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), gomp4.BoxTypeStsd(), gomp4.BoxTypeMp4a(), gomp4.BoxTypeEsds()},
		{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), gomp4.BoxTypeStsd(), gomp4.BoxTypeMp4a(), gomp4.BoxTypeWave(), gomp4.BoxTypeEsds()},
		{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), gomp4.BoxTypeStsd(), gomp4.BoxTypeEnca(), gomp4.BoxTypeEsds()},
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	bips, err := gomp4.ExtractBoxesWithPayload(rs, nil, paths)
	if err != nil {
		return nil, fmt.Errorf("extract esds: %w", err)
	}
	for _, bip := range bips {
		esds, ok := bip.Payload.(*gomp4.Esds)
		if !ok {
			continue
		}
		for _, desc := range esds.Descriptors {
			if desc.Tag == gomp4.DecSpecificInfoTag && len(desc.Data) >= 2 {
				return desc.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("AudioSpecificConfig not found")
}
