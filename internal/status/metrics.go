package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// framesPresented counts frames handed to the display.
	framesPresented = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagplay_frames_presented_total",
		Help: "Total number of video frames presented on the display",
	})

	// tagScans counts RFID reads by frame kind and whether the tag had
	// a video mapped.
	tagScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagplay_tag_scans_total",
		Help: "Total number of RFID tag events by kind and mapping",
	}, []string{"kind", "mapped"})

	// loadFailures counts videos that could not be opened.
	loadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagplay_video_load_failures_total",
		Help: "Total number of videos that failed to open",
	})

	// playbackSwitches counts target changes by destination kind.
	playbackSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagplay_playback_switches_total",
		Help: "Total number of playback target changes by destination",
	}, []string{"target"})
)
