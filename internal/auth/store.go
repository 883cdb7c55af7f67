package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the single token record. Implementations must tolerate
// concurrent readers across process boundaries; overwrites are wholesale and
// last writer wins, which is safe because renewal is idempotent with respect
// to validity.
type Store interface {
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, token *Token) error
}

// FileStore keeps the token as a JSON file. Saves go through a temp file and
// rename so a concurrent reader never observes a partial record.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed token store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted token
func (s *FileStore) Load(_ context.Context) (*Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &token, nil
}

// Save overwrites the persisted token
func (s *FileStore) Save(_ context.Context, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

// SettingsDB is the slice of the database client the token store needs.
// Satisfied by *postgresql.Client.
type SettingsDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) error
}

// DBStore keeps the token as a single row in the settings table, overwritten
// wholesale on each renewal.
type DBStore struct {
	db SettingsDB
}

// NewDBStore creates a database-backed token store
func NewDBStore(db SettingsDB) *DBStore {
	return &DBStore{db: db}
}

// Load reads the persisted token
func (s *DBStore) Load(ctx context.Context) (*Token, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = 'token'`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	var token Token
	if err := json.Unmarshal([]byte(value), &token); err != nil {
		return nil, fmt.Errorf("failed to parse stored token: %w", err)
	}

	return &token, nil
}

// Save overwrites the persisted token
func (s *DBStore) Save(ctx context.Context, token *Token) error {
	value, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('token', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, string(value))
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}
