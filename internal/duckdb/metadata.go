package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Load describes one export of a file.
type Load struct {
	ID        string
	Path      string
	Size      int64
	ModTime   time.Time
	StartedAt time.Time
	Records   int64
	Finished  bool
}

// BeginLoad registers a new load of the fingerprinted file and returns its id.
func (s *Store) BeginLoad(fp FileFingerprint) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO loads VALUES (?, ?, ?, ?, ?, 0, false)`,
		id, fp.Path, fp.Size, fp.ModTime.UnixNano(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("register load: %w", err)
	}
	return id, nil
}

// FinishLoad marks a load complete with its record count.
func (s *Store) FinishLoad(loadID string, records int64) error {
	res, err := s.db.Exec(`UPDATE loads SET records = ?, finished = true WHERE load_id = ?`, records, loadID)
	if err != nil {
		return fmt.Errorf("finish load %s: %w", loadID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish load %s: no such load", loadID)
	}
	return nil
}

// FindLoad returns the most recent finished load whose fingerprint matches fp.
func (s *Store) FindLoad(fp FileFingerprint) (*Load, bool, error) {
	row := s.db.QueryRow(`SELECT load_id, path, size, mod_time, started_at, records, finished
		FROM loads
		WHERE path = ? AND size = ? AND mod_time = ? AND finished
		ORDER BY started_at DESC
		LIMIT 1`, fp.Path, fp.Size, fp.ModTime.UnixNano())
	l, err := scanLoad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find load: %w", err)
	}
	return l, true, nil
}

// Loads lists all registered loads, oldest first.
func (s *Store) Loads() ([]*Load, error) {
	rows, err := s.db.Query(`SELECT load_id, path, size, mod_time, started_at, records, finished
		FROM loads ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}
	defer rows.Close()

	var loads []*Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loads: %w", err)
	}
	return loads, nil
}

// DeleteLoad removes a load and everything exported under it.
func (s *Store) DeleteLoad(loadID string) error {
	for _, table := range []string{"genotypes", "records", "loads"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE load_id = ?", loadID); err != nil {
			return fmt.Errorf("delete load %s from %s: %w", loadID, table, err)
		}
	}
	return nil
}

func scanLoad(row interface{ Scan(dest ...any) error }) (*Load, error) {
	var l Load
	var modTime int64
	if err := row.Scan(&l.ID, &l.Path, &l.Size, &modTime, &l.StartedAt, &l.Records, &l.Finished); err != nil {
		return nil, err
	}
	l.ModTime = time.Unix(0, modTime)
	return &l, nil
}
