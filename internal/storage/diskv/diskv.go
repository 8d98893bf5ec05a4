// Package diskv provides a filesystem-backed implementation of the
// storage.Store interface. Each user's record is one JSON file under the
// base path, which makes documents trivial to inspect and back up.
package diskv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/peterbourgon/diskv/v3"

	"github.com/stattrack/bot/internal/models"
	"github.com/stattrack/bot/internal/storage"
)

// Ensure DiskvStore implements storage.Store
var _ storage.Store = (*DiskvStore)(nil)

// DiskvStore implements storage.Store using diskv.
type DiskvStore struct {
	d *diskv.Diskv
}

// New creates a DiskvStore rooted at basePath.
func New(basePath string) (*DiskvStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("diskv base path required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	return &DiskvStore{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 1024 * 1024, // 1MB
	})}, nil
}

// Close is a no-op; diskv holds no long-lived resources.
func (s *DiskvStore) Close() error {
	return nil
}

// GetUser reads and decodes the user's document file.
func (s *DiskvStore) GetUser(ctx context.Context, userID string) (*models.UserRecord, error) {
	if !s.d.Has(userID) {
		return nil, storage.ErrNotFound
	}
	data, err := s.d.Read(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read user record: %w", err)
	}
	record := &models.UserRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	return record, nil
}

// SetUser writes the user's whole document file.
func (s *DiskvStore) SetUser(ctx context.Context, userID string, record *models.UserRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}
	if err := s.d.Write(userID, data); err != nil {
		return fmt.Errorf("failed to write user record: %w", err)
	}
	return nil
}
