// Package history keeps the append-only audit trail of inventory mutations.
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mise/internal/models"
)

// Ledger is an insertion-ordered log of history entries. Entries are never
// edited, reordered or deduplicated; Clear is the only way to drop them.
//
// Ledger does no locking of its own. inventory.Service serializes access.
type Ledger struct {
	entries []models.HistoryEntry
	now     func() time.Time
	newID   func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now as the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithIDs replaces the UUID generator used for entry identifiers.
func WithIDs(newID func() string) Option {
	return func(l *Ledger) {
		l.newID = newID
	}
}

// New creates a ledger seeded with previously persisted entries.
func New(entries []models.HistoryEntry, opts ...Option) *Ledger {
	l := &Ledger{
		entries: append([]models.HistoryEntry(nil), entries...),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds an entry at the end of the log.
func (l *Ledger) Append(entry models.HistoryEntry) {
	l.entries = append(l.entries, entry)
}

// Record builds a stamped entry for a mutation and appends it.
func (l *Ledger) Record(action models.Action, category models.Category, item string, quantity decimal.Decimal, unit models.Unit) models.HistoryEntry {
	entry := models.HistoryEntry{
		ID:       l.newID(),
		Date:     models.NewTimestamp(l.now()),
		Action:   action,
		Category: category,
		Item:     item,
		Quantity: quantity,
		Unit:     unit,
	}
	l.Append(entry)
	return entry
}

// Latest returns up to n entries, most recent first. n <= 0 returns all of them.
func (l *Ledger) Latest(n int) []models.HistoryEntry {
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]models.HistoryEntry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Entries returns a copy of the log in insertion order.
func (l *Ledger) Entries() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Clear truncates the log. It records nothing about itself.
func (l *Ledger) Clear() {
	l.entries = nil
}

var csvHeader = []string{"date", "action", "category", "item", "quantity", "unit"}

// WriteCSV exports the log in insertion order.
func (l *Ledger) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("history: write csv header: %w", err)
	}
	for _, e := range l.entries {
		record := []string{
			e.Date.Format(models.TimestampLayout),
			string(e.Action),
			string(e.Category),
			e.Item,
			e.Quantity.String(),
			string(e.Unit),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("history: write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
