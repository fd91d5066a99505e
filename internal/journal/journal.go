// Package journal keeps an append-only SQLite record of session lifecycle
// events and uploads, for operators to query from the debug console.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/aotrack/internal/monitoring"
	"github.com/banshee-data/aotrack/internal/session"
)

// DefaultDSN keeps the journal in a shared in-memory database.
const DefaultDSN = "file:aotrack-journal?mode=memory&cache=shared"

var logf = monitoring.Scoped("journal")

// Journal wraps the journal database.
type Journal struct {
	*sql.DB
	dsn string
}

// Open connects to dsn and applies pending migrations.
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer avoids SQLITE_BUSY on the shared-cache memory database.
	db.SetMaxOpenConns(1)

	j := &Journal{DB: db, dsn: dsn}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Entry is one recorded session event.
type Entry struct {
	ID    int64     `json:"id"`
	Kind  string    `json:"kind"`
	Token string    `json:"session_id"`
	Path  string    `json:"dataset_path"`
	At    time.Time `json:"at"`
}

// Record appends a session event.
func (j *Journal) Record(e session.Event) error {
	_, err := j.Exec(
		`INSERT INTO session_events (kind, token, dataset_path, at_unix_nano) VALUES (?, ?, ?, ?)`,
		string(e.Kind), e.Token.String(), e.Path, e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record %s event: %w", e.Kind, err)
	}
	return nil
}

// Observe implements session.Observer. Failures are logged and dropped.
func (j *Journal) Observe(e session.Event) {
	if err := j.Record(e); err != nil {
		logf("%v", err)
	}
}

// Recent returns up to n events, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	rows, err := j.Query(
		`SELECT event_id, kind, token, dataset_path, at_unix_nano
		   FROM session_events
		  ORDER BY event_id DESC
		  LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Token, &e.Path, &ns); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByKind tallies recorded events per kind.
func (j *Journal) CountByKind() (map[string]int, error) {
	rows, err := j.Query(`SELECT kind, COUNT(*) FROM session_events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Upload describes an accepted dataset upload.
type Upload struct {
	Token      string
	Path       string
	Filename   string
	Size       int64
	SystemName string
	NumWFS     int
	NumLoops   int
	At         time.Time
}

// RecordUpload appends an upload record.
func (j *Journal) RecordUpload(u Upload) error {
	var system sql.NullString
	if u.SystemName != "" {
		system = sql.NullString{String: u.SystemName, Valid: true}
	}
	_, err := j.Exec(
		`INSERT INTO dataset_uploads
		   (token, dataset_path, filename, size_bytes, system_name, num_wfs, num_loops, at_unix_nano)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Token, u.Path, u.Filename, u.Size, system, u.NumWFS, u.NumLoops, u.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// UploadCount returns the number of recorded uploads.
func (j *Journal) UploadCount() (int, error) {
	var n int
	err := j.QueryRow(`SELECT COUNT(*) FROM dataset_uploads`).Scan(&n)
	return n, err
}
