package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/stattrack/bot/internal/metrics"
	"github.com/stattrack/bot/internal/models"
)

// Adapter wraps a Store with the read/write semantics the command layer
// relies on:
//
//   - Get is fail-soft: any miss or transient fetch error yields the default
//     empty record, so a flaky store can never make reads error out.
//   - Set is best-effort: failures are logged and returned so handlers can
//     tell the user their change may not have persisted.
//
// Each request does its own full load-compute-save cycle against the
// adapter. Two concurrent mutating requests for the same user can race;
// the last Set wins and silently drops the other's effect. That is an
// accepted limitation of whole-document read-modify-write, not something
// the adapter tries to hide.
type Adapter struct {
	store Store
}

// NewAdapter wraps the given backend.
func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store}
}

// Get loads the user's record, substituting a normalized default record on
// miss or error. It never fails.
func (a *Adapter) Get(ctx context.Context, userID string) *models.UserRecord {
	start := time.Now()
	record, err := a.store.GetUser(ctx, userID)
	switch {
	case err == ErrNotFound:
		metrics.StoreOpDuration.WithLabelValues("get", "miss").Observe(time.Since(start).Seconds())
		return models.NewUserRecord()
	case err != nil:
		slog.Error("get user failed, substituting default record", "user_id", userID, "error", err)
		metrics.StoreOpDuration.WithLabelValues("get", "error").Observe(time.Since(start).Seconds())
		return models.NewUserRecord()
	}
	metrics.StoreOpDuration.WithLabelValues("get", "ok").Observe(time.Since(start).Seconds())
	record.Normalize()
	return record
}

// Set writes the user's record. A failure is logged and returned; the
// caller should warn the user that the change may not have been saved.
func (a *Adapter) Set(ctx context.Context, userID string, record *models.UserRecord) error {
	start := time.Now()
	if err := a.store.SetUser(ctx, userID, record); err != nil {
		slog.Error("set user failed", "user_id", userID, "error", err)
		metrics.StoreOpDuration.WithLabelValues("set", "error").Observe(time.Since(start).Seconds())
		return err
	}
	metrics.StoreOpDuration.WithLabelValues("set", "ok").Observe(time.Since(start).Seconds())
	return nil
}
