// Package history keeps a small SQLite log of tag scans and playback
// segments. The kiosk runs unattended; the log is how an operator finds
// out afterwards which tags were used and what actually played.
package history

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Open initialises the SQLite database and ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite pragmas for performance
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			slog.Warn("pragma failed", "pragma", p, "error", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
	-- One row per RFID frame that reached the playback loop
	CREATE TABLE IF NOT EXISTS tag_scans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		boot_id    TEXT NOT NULL,              -- process run identifier
		tag        TEXT NOT NULL,              -- tag value, hex
		valid      INTEGER NOT NULL,           -- 1 = checksum passed
		mapped     INTEGER NOT NULL,           -- 1 = tag had a video
		scanned_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One row per stretch of playback of a single file
	CREATE TABLE IF NOT EXISTS play_segments (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		boot_id    TEXT NOT NULL,
		path       TEXT NOT NULL,
		is_idle    INTEGER NOT NULL,
		tag        TEXT NOT NULL DEFAULT '',   -- hex, empty for idle
		reason     TEXT NOT NULL DEFAULT '',   -- how it ended
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at   DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_tag_scans_time ON tag_scans (scanned_at);
	CREATE INDEX IF NOT EXISTS idx_play_segments_time ON play_segments (started_at);
	`
	_, err := db.Exec(schema)
	return err
}
