package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vjuliano/audiodrop/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistent store backing every logical table of the service:
// the file list, the per-file access log, the per-IP rate-limit windows and
// the announcement. Each logical table is a SQLite table with per-key atomic
// upsert/delete, so concurrent writers never lose each other's updates the
// way whole-document rewrites would.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the SQLite database at path and ensures the schema
// exists. Failure here is fatal for the process.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS access_log (
			filename TEXT PRIMARY KEY,
			last_access INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rate_limit (
			ip TEXT PRIMARY KEY,
			stamps TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS announcement (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			content TEXT NOT NULL,
			enabled INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutFile stores a file record, replacing any record with the same ID.
func (s *Store) PutFile(rec model.FileRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO files (id, data) VALUES (?, ?)`,
		rec.ID, string(value))
	return err
}

// GetFile retrieves a file record by its ID (the storage name).
func (s *Store) GetFile(id string) (model.FileRecord, error) {
	var rec model.FileRecord
	var data string

	err := s.db.QueryRow(`SELECT data FROM files WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, ErrNotFound
		}
		return rec, err
	}

	err = json.Unmarshal([]byte(data), &rec)
	return rec, err
}

// ListFiles returns all file records, newest first.
func (s *Store) ListFiles() ([]model.FileRecord, error) {
	rows, err := s.db.Query(`SELECT data FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.FileRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var rec model.FileRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("corrupt file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UploadTime.After(records[j].UploadTime)
	})
	return records, nil
}

// DeleteFile removes a file record. It reports whether a record existed.
func (s *Store) DeleteFile(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Touch upserts the last-access timestamp for a stored file.
func (s *Store) Touch(filename string, at time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO access_log (filename, last_access) VALUES (?, ?)`,
		filename, at.UnixMilli())
	return err
}

// LastAccess returns the last-access time for a stored file, if tracked.
func (s *Store) LastAccess(filename string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRow(`SELECT last_access FROM access_log WHERE filename = ?`, filename).Scan(&ms)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// AccessLog returns the full filename → last-access mapping in epoch ms.
func (s *Store) AccessLog() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT filename, last_access FROM access_log`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	log := make(map[string]int64)
	for rows.Next() {
		var filename string
		var ms int64
		if err := rows.Scan(&filename, &ms); err != nil {
			return nil, err
		}
		log[filename] = ms
	}
	return log, rows.Err()
}

// DeleteAccess removes the access-log entry for a stored file. Absence is
// not an error.
func (s *Store) DeleteAccess(filename string) error {
	_, err := s.db.Exec(`DELETE FROM access_log WHERE filename = ?`, filename)
	return err
}

// Window returns the recorded upload timestamps (epoch ms) for an IP.
func (s *Store) Window(ip string) ([]int64, error) {
	var data string
	err := s.db.QueryRow(`SELECT stamps FROM rate_limit WHERE ip = ?`, ip).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var stamps []int64
	if err := json.Unmarshal([]byte(data), &stamps); err != nil {
		return nil, fmt.Errorf("corrupt rate-limit window for %s: %w", ip, err)
	}
	return stamps, nil
}

// PutWindow replaces the upload-timestamp window for an IP.
func (s *Store) PutWindow(ip string, stamps []int64) error {
	if stamps == nil {
		stamps = []int64{}
	}
	value, err := json.Marshal(stamps)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO rate_limit (ip, stamps) VALUES (?, ?)`,
		ip, string(value))
	return err
}

// Announcement returns the current announcement. A missing row yields the
// zero value: empty and disabled.
func (s *Store) Announcement() (model.Announcement, error) {
	var a model.Announcement
	err := s.db.QueryRow(`SELECT content, enabled FROM announcement WHERE id = 1`).
		Scan(&a.Content, &a.Enabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Announcement{}, nil
		}
		return a, err
	}
	return a, nil
}

// SetAnnouncement overwrites the announcement unconditionally.
func (s *Store) SetAnnouncement(a model.Announcement) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO announcement (id, content, enabled) VALUES (1, ?, ?)`,
		a.Content, a.Enabled)
	return err
}
