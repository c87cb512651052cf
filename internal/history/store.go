// Package history persists a journal of CI trigger attempts using SQLite.
// Every trigger is recorded when the chain starts and updated once it
// resolves, so operators can answer "what did the bot fire and where" after
// the chat scrollback is gone. Journal writes are best-effort for callers:
// a failed write never blocks a trigger.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Trigger statuses.
const (
	StatusPending   = "pending"
	StatusTriggered = "triggered"
	StatusFailed    = "failed"
)

// Record is one journaled trigger attempt.
type Record struct {
	ID          string
	Source      string // slack, github, schedule, cli
	Command     string
	Mode        string // pipeline, lane
	Project     string
	Branch      string
	Parameters  string // provider parameters as a JSON object
	Status      string
	BuildURL    string
	Error       string
	RequestedBy string
	Channel     string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Store provides persistent storage for the trigger journal.
// Store handles database migrations automatically on initialization.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a Store with a SQLite database at the given directory.
// It creates the directory if it does not exist and runs migrations.
func NewStore(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "shipbot.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dataPath,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates necessary tables
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS triggers (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			command TEXT NOT NULL,
			mode TEXT NOT NULL,
			project TEXT NOT NULL,
			branch TEXT NOT NULL,
			parameters TEXT,
			status TEXT NOT NULL,
			build_url TEXT,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_created ON triggers(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_status ON triggers(status)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_source ON triggers(source)`,
		`ALTER TABLE triggers ADD COLUMN requested_by TEXT DEFAULT ''`,
		`ALTER TABLE triggers ADD COLUMN channel TEXT DEFAULT ''`,
	}

	for _, migration := range migrations {
		_, err := s.db.Exec(migration)
		if err != nil {
			// Ignore "duplicate column" errors from ALTER TABLE migrations
			// SQLite returns "duplicate column name" when column already exists
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection and releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a new trigger record. The record ID must be unique.
func (s *Store) Save(rec *Record) error {
	_, err := s.db.Exec(`
		INSERT INTO triggers (id, source, command, mode, project, branch, parameters, status, build_url, error, requested_by, channel, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Source, rec.Command, rec.Mode, rec.Project, rec.Branch, rec.Parameters, rec.Status, rec.BuildURL, rec.Error, rec.RequestedBy, rec.Channel, rec.CompletedAt)
	return err
}

// Get retrieves a trigger record by its unique ID.
// Returns sql.ErrNoRows if the record is not found.
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, source, command, mode, project, branch, COALESCE(parameters, ''), status,
			COALESCE(build_url, ''), COALESCE(error, ''), COALESCE(requested_by, ''), COALESCE(channel, ''),
			created_at, completed_at
		FROM triggers WHERE id = ?
	`, id)
	return scanRecord(row)
}

// Recent returns the most recent trigger records, newest first.
func (s *Store) Recent(limit int) ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT id, source, command, mode, project, branch, COALESCE(parameters, ''), status,
			COALESCE(build_url, ''), COALESCE(error, ''), COALESCE(requested_by, ''), COALESCE(channel, ''),
			created_at, completed_at
		FROM triggers ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// MarkTriggered moves a record to the triggered state with the branch the
// provider reported and the resolved build URL.
func (s *Store) MarkTriggered(id, branch, buildURL string) error {
	_, err := s.db.Exec(`
		UPDATE triggers
		SET status = ?, branch = ?, build_url = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StatusTriggered, branch, buildURL, id)
	return err
}

// MarkFailed moves a record to the failed state with the error message.
func (s *Store) MarkFailed(id, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE triggers
		SET status = ?, error = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StatusFailed, errMsg, id)
	return err
}

// CountByStatus returns how many records exist per status.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM triggers GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var completedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.Source, &rec.Command, &rec.Mode, &rec.Project, &rec.Branch,
		&rec.Parameters, &rec.Status, &rec.BuildURL, &rec.Error, &rec.RequestedBy, &rec.Channel,
		&rec.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}
