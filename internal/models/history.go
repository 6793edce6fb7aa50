package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the kind of mutation recorded in the history ledger.
type Action string

const (
	// History actions
	ActionAdded   Action = "added"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
	ActionUsed    Action = "used"
)

// TimestampLayout is the on-disk format of history timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a UTC, second-precision point in time.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to seconds in UTC so it survives a save/load cycle unchanged.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// MarshalJSON writes the timestamp using TimestampLayout.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(TimestampLayout))
}

// UnmarshalJSON reads a timestamp written with TimestampLayout.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := time.Parse(TimestampLayout, text)
	if err != nil {
		return fmt.Errorf("models: parse timestamp %q: %w", text, err)
	}
	t.Time = parsed
	return nil
}

// HistoryEntry records one inventory mutation. Entries are never edited
// after they are appended.
type HistoryEntry struct {
	ID       string          `json:"id"`
	Date     Timestamp       `json:"date"`
	Action   Action          `json:"action"`
	Category Category        `json:"category"`
	Item     string          `json:"item"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     Unit            `json:"unit"`
}
