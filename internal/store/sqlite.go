// ABOUTME: SQLite implementation of the JournalStore interface using modernc.org/sqlite
// ABOUTME: Opens the database in WAL mode and creates the schema on first use

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements JournalStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("SQLite store initialized", "path", path)
	return s, nil
}

// WithLogger replaces the store's logger.
func (s *SQLiteStore) WithLogger(logger *slog.Logger) *SQLiteStore {
	s.logger = logger.With("component", "store")
	return s
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transitions (
			transition_id TEXT PRIMARY KEY,
			run_id        TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			from_status   TEXT NOT NULL,
			to_status     TEXT NOT NULL,
			event         TEXT NOT NULL,
			user_id       TEXT,
			generation    INTEGER NOT NULL DEFAULT 0,
			error         TEXT,
			noop          INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,

			UNIQUE (run_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_transitions_run ON transitions(run_id, seq);
		CREATE INDEX IF NOT EXISTS idx_transitions_user ON transitions(user_id);
		CREATE INDEX IF NOT EXISTS idx_transitions_created ON transitions(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Debug("closing SQLite store")
	return s.db.Close()
}
