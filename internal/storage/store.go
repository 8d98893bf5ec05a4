// Package storage provides abstractions for persistent user documents.
package storage

import (
	"context"
	"errors"

	"github.com/stattrack/bot/internal/models"
)

// ErrNotFound is returned by Store.GetUser when no document exists for the
// user. The Adapter absorbs it; handlers never see it.
var ErrNotFound = errors.New("user record not found")

// Store defines the interface for whole-document user storage.
// This abstraction allows swapping storage backends (SQLite, diskv, a remote
// document database) without changing the service layer. Each user's record
// is read and written as a single unit.
type Store interface {
	// GetUser retrieves a user's full record.
	// Returns ErrNotFound when the user has no stored document.
	GetUser(ctx context.Context, userID string) (*models.UserRecord, error)

	// SetUser replaces a user's full record.
	SetUser(ctx context.Context, userID string, record *models.UserRecord) error

	// Close releases any resources held by the store.
	Close() error
}
