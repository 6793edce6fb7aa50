// Package storage persists the inventory snapshot and the history ledger.
package storage

import (
	"context"
	"errors"
	"fmt"

	"mise/internal/models"
)

// Resource names used in errors and metrics.
const (
	ResourceInventory = "inventory"
	ResourceHistory   = "history"
)

// ErrPersistence is matched by every *PersistenceError.
var ErrPersistence = errors.New("storage: persistence failure")

// PersistenceError reports an I/O failure on one resource.
type PersistenceError struct {
	Resource string
	Op       string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// State is what a gateway loads at startup.
type State struct {
	Snapshot *models.Snapshot
	History  []models.HistoryEntry
	// Warnings lists resources that were corrupt or unreadable and fell
	// back to defaults. They never stop startup.
	Warnings []error
}

// Gateway loads and saves the two persisted resources. Each resource moves
// atomically between whole versions; the two are committed independently.
type Gateway interface {
	Load(ctx context.Context) State
	Save(ctx context.Context, snapshot *models.Snapshot, history []models.HistoryEntry) error
	Close() error
}

// checkHistory rejects entries whose quantity is outside the amount limits.
func checkHistory(entries []models.HistoryEntry) error {
	for _, e := range entries {
		if err := models.CheckAmount(e.Quantity.Abs()); err != nil {
			return fmt.Errorf("entry %s: quantity has %w", e.ID, err)
		}
	}
	return nil
}
