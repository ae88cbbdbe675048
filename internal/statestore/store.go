// Package statestore persists the recent-issues list across restarts in a
// small SQLite database under the XDG state directory. The tracked timer
// itself is transient by design and is never persisted here.
package statestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/redtick/redtick/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS recent_issues (
	position    INTEGER PRIMARY KEY,
	issue_id    INTEGER NOT NULL,
	subject     TEXT NOT NULL,
	activity_id INTEGER NOT NULL DEFAULT 0,
	status_id   INTEGER NOT NULL DEFAULT 0
);
`

// Store is the on-disk state for redtick.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRecent replaces the stored recent-issues list. The list is small
// (capped upstream), so a full rewrite in one transaction is the simplest
// correct thing.
func (s *Store) SaveRecent(issues []model.Issue) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM recent_issues`); err != nil {
		return fmt.Errorf("clearing recent issues: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO recent_issues
		(position, issue_id, subject, activity_id, status_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, issue := range issues {
		if _, err := stmt.Exec(i, issue.ID, issue.Subject, issue.ActivityID, issue.StatusID); err != nil {
			return fmt.Errorf("inserting issue #%d: %w", issue.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing recent issues: %w", err)
	}
	return nil
}

// LoadRecent returns the stored recent-issues list, most-recent-first.
// An empty database yields an empty list, not an error.
func (s *Store) LoadRecent() ([]model.Issue, error) {
	rows, err := s.db.Query(`SELECT issue_id, subject, activity_id, status_id
		FROM recent_issues ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying recent issues: %w", err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var issue model.Issue
		if err := rows.Scan(&issue.ID, &issue.Subject, &issue.ActivityID, &issue.StatusID); err != nil {
			return nil, fmt.Errorf("scanning recent issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent issues: %w", err)
	}
	return issues, nil
}
