package video

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Library is the immutable tag→video map built once at startup.
// Every stored path has been verified to exist; entries whose file is
// missing are dropped with a warning and never inserted.
type Library struct {
	idlePath string
	byTag    map[uint64]string
}

// NewLibrary resolves the idle video and every tag-mapped video inside
// mediaDir. A missing media dir or idle video is an error (fatal at
// startup); a missing tag video only drops that entry.
func NewLibrary(mediaDir, idleVideo string, tags map[uint64]string) (*Library, error) {
	if info, err := os.Stat(mediaDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("video: media folder %s not found", mediaDir)
	}

	idlePath := filepath.Join(mediaDir, idleVideo)
	if _, err := os.Stat(idlePath); err != nil {
		return nil, fmt.Errorf("video: idle video not found: %s", idlePath)
	}

	byTag := make(map[uint64]string, len(tags))
	for id, file := range tags {
		path := filepath.Join(mediaDir, file)
		if _, err := os.Stat(path); err != nil {
			slog.Warn("video: mapped video missing, tag will be ignored", "tag", fmt.Sprintf("%#x", id), "file", file)
			continue
		}
		byTag[id] = path
	}

	slog.Info("video: library built", "idle", idlePath, "tags", len(byTag))
	return &Library{idlePath: idlePath, byTag: byTag}, nil
}

// IdlePath returns the resolved idle video path.
func (l *Library) IdlePath() string {
	return l.idlePath
}

// Resolve returns the video path mapped to a tag ID.
func (l *Library) Resolve(tag uint64) (string, bool) {
	path, ok := l.byTag[tag]
	return path, ok
}

// TagFor returns the tag ID whose video is at path, if any.
func (l *Library) TagFor(path string) (uint64, bool) {
	for id, p := range l.byTag {
		if p == path {
			return id, true
		}
	}
	return 0, false
}

// Len reports how many tag mappings survived verification.
func (l *Library) Len() int {
	return len(l.byTag)
}
