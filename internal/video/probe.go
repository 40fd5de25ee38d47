package video

import (
	"fmt"
	"io"
	"os"

	gomp4 "github.com/abema/go-mp4"
)

// Probe reads an MP4 container's video track metadata without decoding
// any pictures. FPS is derived from the sample count over the track
// duration; dimensions come from the track header.
func Probe(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, fmt.Errorf("video: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := gomp4.Probe(f)
	if err != nil {
		return Meta{}, fmt.Errorf("video: probe %s: %w", path, err)
	}

	track := findVideoTrack(info)
	if track == nil {
		return Meta{}, fmt.Errorf("video: no video track in %s", path)
	}

	meta := Meta{TotalFrames: len(track.Samples)}
	if track.Timescale > 0 && track.Duration > 0 {
		seconds := float64(track.Duration) / float64(track.Timescale)
		if seconds > 0 {
			meta.FPS = float64(meta.TotalFrames) / seconds
		}
	}

	if track.AVC != nil {
		meta.Width = int(track.AVC.Width)
		meta.Height = int(track.AVC.Height)
	}
	if meta.Width == 0 || meta.Height == 0 {
		w, h := tkhdDimensions(f)
		meta.Width, meta.Height = w, h
	}
	if meta.Width == 0 || meta.Height == 0 {
		return Meta{}, fmt.Errorf("video: no dimensions for %s", path)
	}

	return meta, nil
}

// findVideoTrack picks the video track from the probe results: AVC if
// present, otherwise any track whose timescale is not a standard audio
// sample rate.
func findVideoTrack(info *gomp4.ProbeInfo) *gomp4.Track {
	for _, t := range info.Tracks {
		if t.Codec == gomp4.CodecAVC1 {
			return t
		}
	}
	for _, t := range info.Tracks {
		if len(t.Samples) == 0 {
			continue
		}
		if !isAudioTimescale(t.Timescale) {
			return t
		}
	}
	return nil
}

// isAudioTimescale reports whether ts matches a standard audio sample
// rate (8 kHz – 96 kHz); video tracks use 600/15360/24000/90000 etc.
func isAudioTimescale(ts uint32) bool {
	switch ts {
	case 8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000:
		return true
	}
	return false
}

// tkhdDimensions extracts width/height from track header boxes as a
// fallback when the sample entry carries no dimensions. tkhd stores
// 16.16 fixed point values.
func tkhdDimensions(rs io.ReadSeeker) (int, int) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, 0
	}
	boxes, err := gomp4.ExtractBoxesWithPayload(rs, nil, []gomp4.BoxPath{
		{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeTkhd()},
	})
	if err != nil {
		return 0, 0
	}
	for _, bip := range boxes {
		tkhd, ok := bip.Payload.(*gomp4.Tkhd)
		if !ok {
			continue
		}
		w := int(tkhd.Width >> 16)
		h := int(tkhd.Height >> 16)
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return 0, 0
}
