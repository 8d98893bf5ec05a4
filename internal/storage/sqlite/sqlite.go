// Package sqlite provides a SQLite-backed implementation of the storage.Store
// interface. Each user's record is stored as one JSON document row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/stattrack/bot/internal/models"
	"github.com/stattrack/bot/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetUser retrieves a user's record, decoding the stored JSON document.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.UserRecord, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM user_records WHERE user_id = ?",
		userID,
	).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user record: %w", err)
	}

	record := &models.UserRecord{}
	if err := json.Unmarshal([]byte(document), record); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	return record, nil
}

// SetUser replaces the user's whole document.
func (s *SQLiteStore) SetUser(ctx context.Context, userID string, record *models.UserRecord) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_records (user_id, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		userID, string(document), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set user record: %w", err)
	}
	return nil
}
