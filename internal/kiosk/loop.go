package kiosk

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mtavella/tagplay/internal/audio"
	"github.com/mtavella/tagplay/internal/rfid"
	"github.com/mtavella/tagplay/internal/video"
)

// Surface is the full-screen render target. The playback loop writes one
// composited frame per tick; Done fires when the window is closed or the
// operator presses the quit key.
type Surface interface {
	// Prepare is called after every (re)load with the new stream meta.
	Prepare(meta video.Meta) error
	// Present shows one frame.
	Present(f *video.Frame) error
	// Done is closed when the surface goes away.
	Done() <-chan struct{}
	// Close releases display resources. Idempotent.
	Close() error
}

// Recorder persists scans and playback segments. Implementations must
// never block the frame cadence. May be nil on the Loop.
type Recorder interface {
	RecordScan(tagID uint64, valid, mapped bool)
	SegmentStarted(path string, isIdle bool, tagID uint64, hasTag bool) int64
	SegmentEnded(id int64, reason string)
}

// Notifier receives observability callouts (status page, metrics).
// May be nil on the Loop.
type Notifier interface {
	PlaybackChanged(Snapshot)
	TagSeen(tagID uint64, kind string, mapped bool)
	FramePresented()
	LoadFailed(path string)
}

// Snapshot is the externally visible playback state.
type Snapshot struct {
	Phase  string  `json:"phase"`
	Path   string  `json:"path"`
	IsIdle bool    `json:"isIdle"`
	TagID  string  `json:"tagId,omitempty"`
	FPS    float64 `json:"fps,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// Stopper is the tag event source lifecycle as seen by the loop:
// cooperative stop plus a bounded join. Satisfied by *rfid.Reader.
type Stopper interface {
	SignalStop()
	Join(timeout time.Duration) bool
}

// Loop drives the kiosk once per rendered frame: drain tag events, apply
// the policy, (re)load on target change, read, composite, present, pace,
// detect end-of-stream, repeat. It owns the video and audio resources
// exclusively; the only thing shared with another goroutine is the
// events channel.
type Loop struct {
	library *video.Library
	policy  *Policy
	session *Session
	sound   *audio.Controller
	surface Surface

	events <-chan rfid.Event // nil when the kiosk runs reader-less
	reader Stopper           // nil when the kiosk runs reader-less

	history Recorder // optional
	status  Notifier // optional

	fadeSeconds float64

	// loadRetryDelay guards against a tight failure loop when even the
	// idle video cannot load.
	loadRetryDelay time.Duration
	joinTimeout    time.Duration
}

// Options bundles the Loop's collaborators.
type Options struct {
	Library     *video.Library
	Open        video.Opener
	Sound       *audio.Controller
	Surface     Surface
	Events      <-chan rfid.Event
	Reader      Stopper
	History     Recorder
	Status      Notifier
	FadeSeconds float64
}

// New assembles a playback loop.
func New(opts Options) *Loop {
	return &Loop{
		library:        opts.Library,
		policy:         NewPolicy(opts.Library),
		session:        NewSession(opts.Open, opts.FadeSeconds),
		sound:          opts.Sound,
		surface:        opts.Surface,
		events:         opts.Events,
		reader:         opts.Reader,
		history:        opts.History,
		status:         opts.Status,
		fadeSeconds:    opts.FadeSeconds,
		loadRetryDelay: time.Second,
		joinTimeout:    2 * time.Second,
	}
}

// Run blocks until the context is cancelled or the surface closes.
// A panic inside the loop is logged with its stack and routed through
// the same shutdown sequence instead of crashing the process.
func (l *Loop) Run(ctx context.Context) (err error) {
	st := NewState(l.library.IdlePath())
	segment := int64(-1)

	defer l.shutdown(&segment)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("kiosk: panic in playback loop",
				"panic", r, "path", st.CurrentPath, "phase", st.Phase.String(),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("kiosk: playback loop panicked: %v", r)
		}
	}()

	slog.Info("kiosk: playback loop starting", "idle", l.library.IdlePath(), "tags", l.library.Len())

	for {
		if ctx.Err() != nil || l.surfaceGone() {
			return nil
		}

		// 1. Drain pending tag events (non-blocking).
		l.drainEvents(st)

		// 2. Reload when the target changed (or nothing is open).
		if st.CurrentPath != st.TargetPath || !l.session.IsOpen() {
			if !l.reload(ctx, st, &segment) {
				continue
			}
		}

		// 3. Read and show one frame.
		frame := l.session.ReadFrame()
		if frame == nil {
			// End-of-stream and read errors are treated identically.
			slog.Info("kiosk: video ended", "path", st.CurrentPath, "phase", st.Phase.String())
			l.session.Close()
			l.sound.StopImmediately()
			l.endSegment(&segment, "ended")
			l.policy.OnEnded(st)
			continue
		}

		if !st.TargetIsIdle {
			l.sound.Update(l.session.Elapsed(), l.fadeSeconds)
		}

		l.session.ApplyFade(frame)
		if err := l.surface.Present(frame); err != nil {
			// The surface's Done channel reports a dead window; a single
			// failed write is not worth more than a debug line.
			slog.Debug("kiosk: present failed", "error", err)
		}
		if l.status != nil {
			l.status.FramePresented()
		}

		// 4. Pace to the video frame rate. This wait is the loop's only
		// intentional suspension point and doubles as the quit check.
		if !l.pace(ctx, l.session.Meta().FPS) {
			return nil
		}
	}
}

// drainEvents consumes every queued tag event. A burst between frames
// collapses to the most recent effective decision, since re-inserting
// the active tag is a no-op.
func (l *Loop) drainEvents(st *State) {
	for {
		select {
		case ev := <-l.events:
			l.handleEvent(st, ev)
		default:
			return
		}
	}
}

func (l *Loop) handleEvent(st *State, ev rfid.Event) {
	switch ev.Kind {
	case rfid.EventInserted:
		outcome := l.policy.OnInserted(st, ev.TagID)
		mapped := outcome != InsertUnmapped
		if l.history != nil {
			l.history.RecordScan(ev.TagID, true, mapped)
		}
		if l.status != nil {
			l.status.TagSeen(ev.TagID, ev.Kind.String(), mapped)
		}
	case rfid.EventInvalid:
		slog.Warn("kiosk: invalid tag data received", "tag", hexTag(ev.TagID))
		if l.history != nil {
			l.history.RecordScan(ev.TagID, false, false)
		}
		if l.status != nil {
			l.status.TagSeen(ev.TagID, ev.Kind.String(), false)
		}
	}
}

// reload opens the current target. Returns false when the caller should
// restart the iteration (the load failed and state was rewritten).
func (l *Loop) reload(ctx context.Context, st *State, segment *int64) bool {
	l.endSegment(segment, "switched")

	fadeIn := FadeInOnLoad(st.Phase)
	slog.Info("kiosk: loading video", "path", st.TargetPath, "phase", st.Phase.String(), "fadeIn", fadeIn)

	meta, err := l.session.Load(st.TargetPath, fadeIn)
	if err != nil {
		slog.Error("kiosk: failed to open video, reverting to idle",
			"path", st.TargetPath, "phase", st.Phase.String(), "error", err)
		if l.status != nil {
			l.status.LoadFailed(st.TargetPath)
		}
		l.sound.StopImmediately()
		l.policy.OnLoadFailed(st)
		// brief delay so a broken idle video cannot spin the loop
		select {
		case <-ctx.Done():
		case <-time.After(l.loadRetryDelay):
		}
		return false
	}

	l.policy.OnLoaded(st)

	if st.TargetIsIdle {
		l.sound.StopImmediately()
	} else {
		l.sound.Start(meta.TotalFrames, meta.FPS)
	}

	if err := l.surface.Prepare(meta); err != nil {
		slog.Warn("kiosk: surface rejected stream properties", "error", err, "path", st.CurrentPath)
	}

	if l.history != nil {
		*segment = l.history.SegmentStarted(st.CurrentPath, st.TargetIsIdle, st.ActiveTag, st.HasActiveTag)
	}
	l.publish(st, meta)
	return true
}

func (l *Loop) publish(st *State, meta video.Meta) {
	if l.status == nil {
		return
	}
	snap := Snapshot{
		Phase:  st.Phase.String(),
		Path:   st.CurrentPath,
		IsIdle: st.TargetIsIdle,
		FPS:    meta.FPS,
		Width:  meta.Width,
		Height: meta.Height,
	}
	if st.HasActiveTag {
		snap.TagID = hexTag(st.ActiveTag)
	}
	l.status.PlaybackChanged(snap)
}

// pace blocks for one frame interval (at least 1 ms), watching for
// cancellation and surface shutdown. Returns false to quit.
func (l *Loop) pace(ctx context.Context, fps float64) bool {
	delay := time.Second
	if fps > 0 {
		delay = time.Duration(float64(time.Second) / fps)
	}
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	select {
	case <-ctx.Done():
		return false
	case <-l.surface.Done():
		slog.Info("kiosk: display closed, exiting")
		return false
	case <-time.After(delay):
		return true
	}
}

func (l *Loop) surfaceGone() bool {
	select {
	case <-l.surface.Done():
		return true
	default:
		return false
	}
}

func (l *Loop) endSegment(segment *int64, reason string) {
	if l.history == nil || *segment < 0 {
		return
	}
	l.history.SegmentEnded(*segment, reason)
	*segment = -1
}

// shutdown releases everything in a fixed order, unconditionally: stop
// and join the tag event source, release the video source, force-stop
// audio, then the display.
func (l *Loop) shutdown(segment *int64) {
	slog.Info("kiosk: shutting down")

	if l.reader != nil {
		l.reader.SignalStop()
		if !l.reader.Join(l.joinTimeout) {
			slog.Warn("kiosk: tag reader did not stop in time")
		}
	}

	l.session.Close()
	l.sound.StopImmediately()
	l.endSegment(segment, "shutdown")

	if err := l.surface.Close(); err != nil {
		slog.Warn("kiosk: closing display failed", "error", err)
	}
	slog.Info("kiosk: resources released")
}
