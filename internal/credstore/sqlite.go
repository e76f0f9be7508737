package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/storrsec/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps visitor storage in a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (creating if needed) the database at dbPath and runs migrations
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	// one writer at a time; SQLite serializes anyway
	sqlDB.SetMaxOpenConns(1)

	store := &SQLiteStore{db: sqlDB, dbPath: dbPath}
	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS visitor_storage (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (scope, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visitor_storage_updated_at ON visitor_storage(updated_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM visitor_storage WHERE scope = ? AND key = ?`, scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.WrapCredentialStore("get", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitor_storage (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UTC(),
	)
	if err != nil {
		return domain.WrapCredentialStore("set", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, scope, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM visitor_storage WHERE scope = ? AND key = ?`, scope, key,
	)
	if err != nil {
		return domain.WrapCredentialStore("remove", err)
	}
	return nil
}

// PurgeBefore deletes every item last written before cutoff
func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM visitor_storage WHERE updated_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, domain.WrapCredentialStore("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.WrapCredentialStore("purge", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
