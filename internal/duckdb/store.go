// Package duckdb exports decoded BCF2 records and genotypes into DuckDB for
// ad-hoc querying. Each imported file is registered as a load so that repeated
// exports of an unchanged file can be detected.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding exported records.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS loads (
			load_id VARCHAR PRIMARY KEY,
			path VARCHAR,
			size BIGINT,
			mod_time BIGINT,
			started_at TIMESTAMP,
			records BIGINT,
			finished BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			load_id VARCHAR,
			rec_no BIGINT,
			chrom VARCHAR,
			pos BIGINT,
			end_pos BIGINT,
			id VARCHAR,
			ref VARCHAR,
			alt VARCHAR,
			qual DOUBLE,
			filter VARCHAR,
			info VARCHAR,
			n_samples BIGINT,
			PRIMARY KEY (load_id, rec_no)
		)`,
		`CREATE TABLE IF NOT EXISTS genotypes (
			load_id VARCHAR,
			rec_no BIGINT,
			sample_idx BIGINT,
			sample VARCHAR,
			gt VARCHAR,
			gq BIGINT,
			dp BIGINT,
			ad VARCHAR,
			pl VARCHAR,
			ft VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
