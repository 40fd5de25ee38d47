// Package config loads the kiosk configuration from a YAML file.
//
// Every value has a documented default; a missing or broken config file
// degrades to defaults with a warning rather than stopping the kiosk.
// Tag IDs are written as hexadecimal strings in the file and parsed to
// integers here; malformed keys are skipped with a warning so one typo
// never takes the whole map down.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reader holds the RFID reader connection settings.
type Reader struct {
	Port             string  `yaml:"port"`              // serial device, e.g. /dev/serial0
	HeartbeatSeconds float64 `yaml:"heartbeat_seconds"` // card-removed detection interval
}

// Config is the full kiosk configuration.
type Config struct {
	MediaDir    string `yaml:"media_dir"`
	IdleVideo   string `yaml:"idle_video"`
	Soundtrack  string `yaml:"soundtrack"`
	WindowTitle string `yaml:"window_title"`

	FadeSeconds   float64 `yaml:"fade_seconds"`
	AllowNoReader bool    `yaml:"allow_no_reader"`

	LogLevel   string `yaml:"log_level"`
	StatusAddr string `yaml:"status_addr"` // empty disables the status server
	HistoryDB  string `yaml:"history_db"`  // empty disables play history

	Reader Reader `yaml:"reader"`

	// Tags maps hexadecimal tag IDs to video filenames inside MediaDir.
	Tags map[string]string `yaml:"tags"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		MediaDir:    "media",
		IdleVideo:   "idle.mp4",
		Soundtrack:  "soundtrack.m4a",
		WindowTitle: "Interactive Kiosk",
		FadeSeconds: 1.5,
		LogLevel:    "info",
		StatusAddr:  ":8091",
		HistoryDB:   "tagplay.db",
		Reader: Reader{
			Port:             "/dev/serial0",
			HeartbeatSeconds: 0.5,
		},
		Tags: map[string]string{},
	}
}

// Load reads the YAML config at path. On any failure it returns the
// defaults together with the error, so the caller can log and keep going.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.FadeSeconds <= 0 {
		slog.Warn("config: fade_seconds must be positive, using default", "value", cfg.FadeSeconds)
		cfg.FadeSeconds = Default().FadeSeconds
	}
	if cfg.Reader.HeartbeatSeconds <= 0 {
		slog.Warn("config: reader.heartbeat_seconds must be positive, using default", "value", cfg.Reader.HeartbeatSeconds)
		cfg.Reader.HeartbeatSeconds = Default().Reader.HeartbeatSeconds
	}

	return cfg, nil
}

// TagMap converts the hex-keyed Tags section into an integer-keyed map.
// Malformed hexadecimal keys are logged and skipped; valid entries are
// unaffected.
func (c Config) TagMap() map[uint64]string {
	out := make(map[uint64]string, len(c.Tags))
	for key, file := range c.Tags {
		id, err := ParseTagID(key)
		if err != nil {
			slog.Warn("config: invalid hexadecimal tag ID, skipping", "key", key, "error", err)
			continue
		}
		out[id] = file
	}
	return out
}

// ParseTagID parses a hexadecimal tag ID, with or without a 0x prefix.
func ParseTagID(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty tag ID")
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

// Level maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
