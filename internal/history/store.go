package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Scan is one recorded tag read.
type Scan struct {
	ID        int64     `json:"id"`
	BootID    string    `json:"bootId"`
	Tag       string    `json:"tag"`
	Valid     bool      `json:"valid"`
	Mapped    bool      `json:"mapped"`
	ScannedAt time.Time `json:"scannedAt"`
}

// Segment is one recorded stretch of playback.
type Segment struct {
	ID        int64      `json:"id"`
	BootID    string     `json:"bootId"`
	Path      string     `json:"path"`
	IsIdle    bool       `json:"isIdle"`
	Tag       string     `json:"tag,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Store writes scans and segments tagged with a per-boot identifier, so
// rows from different runs of the kiosk can be told apart. All writes
// are best effort: a failed insert is logged, never surfaced, because
// nothing about playback may depend on the log.
type Store struct {
	db     *sql.DB
	bootID string
}

// NewStore creates a Store with a fresh boot identifier.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, bootID: uuid.NewString()}
}

// BootID returns the identifier assigned to this process run.
func (s *Store) BootID() string { return s.bootID }

// RecordScan logs one tag read.
func (s *Store) RecordScan(tagID uint64, valid, mapped bool) {
	_, err := s.db.Exec(
		"INSERT INTO tag_scans (boot_id, tag, valid, mapped) VALUES (?, ?, ?, ?)",
		s.bootID, hexTag(tagID), boolInt(valid), boolInt(mapped),
	)
	if err != nil {
		slog.Warn("history: scan insert failed", "tag", hexTag(tagID), "error", err)
	}
}

// SegmentStarted logs the beginning of playback of one file and returns
// the segment id, or -1 when the insert failed.
func (s *Store) SegmentStarted(path string, isIdle bool, tagID uint64, hasTag bool) int64 {
	tag := ""
	if hasTag {
		tag = hexTag(tagID)
	}
	res, err := s.db.Exec(
		"INSERT INTO play_segments (boot_id, path, is_idle, tag) VALUES (?, ?, ?, ?)",
		s.bootID, path, boolInt(isIdle), tag,
	)
	if err != nil {
		slog.Warn("history: segment insert failed", "path", path, "error", err)
		return -1
	}
	id, err := res.LastInsertId()
	if err != nil {
		return -1
	}
	return id
}

// SegmentEnded closes a segment opened by SegmentStarted. Unknown ids
// are ignored.
func (s *Store) SegmentEnded(id int64, reason string) {
	if id < 0 {
		return
	}
	_, err := s.db.Exec(
		"UPDATE play_segments SET ended_at = CURRENT_TIMESTAMP, reason = ? WHERE id = ? AND ended_at IS NULL",
		reason, id,
	)
	if err != nil {
		slog.Warn("history: segment update failed", "id", id, "error", err)
	}
}

// RecentScans returns up to limit scans, newest first.
func (s *Store) RecentScans(limit int) ([]Scan, error) {
	rows, err := s.db.Query(
		"SELECT id, boot_id, tag, valid, mapped, scanned_at FROM tag_scans ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(&sc.ID, &sc.BootID, &sc.Tag, &sc.Valid, &sc.Mapped, &sc.ScannedAt); err != nil {
			return nil, err
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}

// RecentSegments returns up to limit segments, newest first.
func (s *Store) RecentSegments(limit int) ([]Segment, error) {
	rows, err := s.db.Query(
		"SELECT id, boot_id, path, is_idle, tag, reason, started_at, ended_at FROM play_segments ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var sg Segment
		var ended sql.NullTime
		if err := rows.Scan(&sg.ID, &sg.BootID, &sg.Path, &sg.IsIdle, &sg.Tag, &sg.Reason, &sg.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			sg.EndedAt = &t
		}
		segments = append(segments, sg)
	}
	return segments, rows.Err()
}

func hexTag(id uint64) string {
	return fmt.Sprintf("0x%X", id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
