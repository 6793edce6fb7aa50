package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mise/internal/models"
)

// compile-time interface check
var _ Gateway = (*FileGateway)(nil)

// FileGateway keeps each resource in its own JSON document.
type FileGateway struct {
	inventoryPath string
	historyPath   string
}

// NewFileGateway stores the snapshot at inventoryPath and the ledger at historyPath.
func NewFileGateway(inventoryPath, historyPath string) *FileGateway {
	return &FileGateway{inventoryPath: inventoryPath, historyPath: historyPath}
}

// Load reads both documents. Missing files yield defaults silently; corrupt
// ones yield defaults plus a warning.
func (g *FileGateway) Load(_ context.Context) State {
	state := State{Snapshot: models.NewSnapshot()}

	if data, err := readDocument(g.inventoryPath); err != nil {
		state.Warnings = append(state.Warnings, &PersistenceError{Resource: ResourceInventory, Op: "load", Err: err})
	} else if data != nil {
		snap := models.NewSnapshot()
		if err := json.Unmarshal(data, snap); err != nil {
			state.Warnings = append(state.Warnings, &PersistenceError{Resource: ResourceInventory, Op: "load", Err: err})
		} else {
			state.Snapshot = snap
		}
	}

	if data, err := readDocument(g.historyPath); err != nil {
		state.Warnings = append(state.Warnings, &PersistenceError{Resource: ResourceHistory, Op: "load", Err: err})
	} else if data != nil {
		var entries []models.HistoryEntry
		err := json.Unmarshal(data, &entries)
		if err == nil {
			err = checkHistory(entries)
		}
		if err != nil {
			state.Warnings = append(state.Warnings, &PersistenceError{Resource: ResourceHistory, Op: "load", Err: err})
		} else {
			state.History = entries
		}
	}

	return state
}

// Save writes the snapshot, then the ledger. A failure on one does not stop
// the other; both failures are returned joined.
func (g *FileGateway) Save(_ context.Context, snapshot *models.Snapshot, history []models.HistoryEntry) error {
	var errs []error

	if data, err := json.MarshalIndent(snapshot, "", "  "); err != nil {
		errs = append(errs, &PersistenceError{Resource: ResourceInventory, Op: "save", Err: err})
	} else if err := writeAtomic(g.inventoryPath, data); err != nil {
		errs = append(errs, &PersistenceError{Resource: ResourceInventory, Op: "save", Err: err})
	}

	if history == nil {
		history = []models.HistoryEntry{}
	}
	if data, err := json.MarshalIndent(history, "", "  "); err != nil {
		errs = append(errs, &PersistenceError{Resource: ResourceHistory, Op: "save", Err: err})
	} else if err := writeAtomic(g.historyPath, data); err != nil {
		errs = append(errs, &PersistenceError{Resource: ResourceHistory, Op: "save", Err: err})
	}

	return errors.Join(errs...)
}

// Close is a no-op; files are not held open between saves.
func (g *FileGateway) Close() error {
	return nil
}

// readDocument returns nil data when the file does not exist or is empty.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// writeAtomic writes data to a temporary file in the target directory, syncs
// it, and renames it over path. Readers see either the old or the new file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	committed = true
	return nil
}
