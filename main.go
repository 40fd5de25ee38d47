package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtavella/tagplay/internal/audio"
	"github.com/mtavella/tagplay/internal/config"
	"github.com/mtavella/tagplay/internal/history"
	"github.com/mtavella/tagplay/internal/kiosk"
	"github.com/mtavella/tagplay/internal/render"
	"github.com/mtavella/tagplay/internal/rfid"
	"github.com/mtavella/tagplay/internal/status"
	"github.com/mtavella/tagplay/internal/video"
)

func main() {
	// ── Flags ───────────────────────────────────────────
	configPath := flag.String("config", "tagplay.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// ── Config ──────────────────────────────────────────
	// A broken config file degrades to defaults; the kiosk should come
	// up with whatever media it can find rather than stay dark.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("continuing with default configuration", "path", *configPath, "error", err)
	}

	// ── Logger ──────────────────────────────────────────
	logLevel := cfg.Level()
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// ── Video library ───────────────────────────────────
	library, err := video.NewLibrary(cfg.MediaDir, cfg.IdleVideo, cfg.TagMap())
	if err != nil {
		slog.Error("media library unusable", "dir", cfg.MediaDir, "error", err)
		os.Exit(1)
	}
	slog.Info("media library ready", "dir", cfg.MediaDir, "tags", library.Len())

	// ── Soundtrack ──────────────────────────────────────
	// Content videos play with a shared backing track. A missing or
	// undecodable file means silent playback, nothing worse.
	var player audio.Player
	if cfg.Soundtrack != "" {
		track, err := audio.LoadTrack(cfg.Soundtrack)
		if err != nil {
			slog.Warn("soundtrack unavailable, playing silent", "path", cfg.Soundtrack, "error", err)
		} else {
			player = audio.NewMixer(track, &audio.ExecSink{})
			slog.Info("soundtrack loaded", "path", cfg.Soundtrack, "duration", track.Duration())
		}
	}
	sound := audio.NewController(player)

	// ── RFID reader ─────────────────────────────────────
	var (
		events <-chan rfid.Event
		reader *rfid.Reader
	)
	queue := rfid.NewQueue(16)
	heartbeat := time.Duration(cfg.Reader.HeartbeatSeconds * float64(time.Second))
	reader, err = rfid.Open(cfg.Reader.Port, heartbeat, queue)
	if err != nil {
		if !cfg.AllowNoReader {
			slog.Error("rfid reader unavailable", "port", cfg.Reader.Port, "error", err)
			os.Exit(1)
		}
		slog.Warn("running without rfid reader, idle video only", "port", cfg.Reader.Port, "error", err)
		reader = nil
	} else {
		events = queue.Events()
		go reader.Run()
	}

	// ── Play history ────────────────────────────────────
	var store *history.Store
	if cfg.HistoryDB != "" {
		db, err := history.Open(cfg.HistoryDB)
		if err != nil {
			slog.Warn("play history disabled", "path", cfg.HistoryDB, "error", err)
		} else {
			defer db.Close()
			store = history.NewStore(db)
			slog.Info("play history enabled", "path", cfg.HistoryDB, "boot", store.BootID())
		}
	}

	// ── Status server ───────────────────────────────────
	var statusServer *status.Server
	if cfg.StatusAddr != "" {
		var hist status.HistorySource
		if store != nil {
			hist = store
		}
		statusServer = status.NewServer(cfg.StatusAddr, hist)
		statusServer.Start()
	}

	// ── Playback loop ───────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := kiosk.Options{
		Library:     library,
		Open:        video.OpenFFmpeg,
		Sound:       sound,
		Surface:     render.NewWindow(cfg.WindowTitle),
		Events:      events,
		FadeSeconds: cfg.FadeSeconds,
	}
	if reader != nil {
		opts.Reader = reader
	}
	if store != nil {
		opts.History = store
	}
	if statusServer != nil {
		opts.Status = statusServer
	}

	err = kiosk.New(opts).Run(ctx)

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		statusServer.Shutdown(shutdownCtx)
		cancel()
	}

	if err != nil {
		slog.Error("playback loop failed", "error", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}
