package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"stridelink/pkg/types"
)

// Store is the local on-device database: the saved login and a small
// cache of profile data for offline rendering. It never holds chat
// state; the message log lives in memory and is rebuilt per mount.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	user_id      TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	role         TEXT NOT NULL,
	token        TEXT NOT NULL,
	saved_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_cache (
	user_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS device (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open creates the directory and database file if needed, applies the
// SQLite pragmas and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrMissingPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// One local process, tiny write rate; a single connection avoids
	// SQLITE_BUSY without a writer queue.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureDeviceID(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveCredentials replaces the single saved login.
func (s *Store) SaveCredentials(ctx context.Context, creds types.Credentials) error {
	if err := s.guard(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// One login at a time; a new save evicts the previous account.
	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (user_id, display_name, role, token, saved_at) VALUES (?, ?, ?, ?, ?)`,
		creds.UserID, creds.DisplayName, creds.Role, creds.Token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return tx.Commit()
}

// Credentials returns the saved login, or ErrNoCredentials.
func (s *Store) Credentials(ctx context.Context) (*types.Credentials, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var creds types.Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, role, token, saved_at FROM credentials LIMIT 1`).
		Scan(&creds.UserID, &creds.DisplayName, &creds.Role, &creds.Token, &creds.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return &creds, nil
}

// ClearCredentials removes the saved login (logout).
func (s *Store) ClearCredentials(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// CacheProfile stores a JSON snapshot of the user's profile for
// offline display.
func (s *Store) CacheProfile(ctx context.Context, userID string, profile interface{}) error {
	if err := s.guard(); err != nil {
		return err
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profile_cache (user_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// CachedProfile loads the snapshot into out, or ErrNoCachedEntry.
func (s *Store) CachedProfile(ctx context.Context, userID string, out interface{}) error {
	if err := s.guard(); err != nil {
		return err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM profile_cache WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoCachedEntry
	}
	if err != nil {
		return fmt.Errorf("failed to load cached profile: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return nil
}

// DeviceID returns the stable per-install identifier.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM device WHERE key = 'device_id'`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to load device id: %w", err)
	}
	return id, nil
}

// ensureDeviceID assigns the install identifier exactly once.
func (s *Store) ensureDeviceID() error {
	_, err := s.db.Exec(
		`INSERT INTO device (key, value) VALUES ('device_id', ?) ON CONFLICT(key) DO NOTHING`,
		uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to assign device id: %w", err)
	}
	return nil
}
