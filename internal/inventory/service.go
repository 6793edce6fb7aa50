// Package inventory owns the live inventory: one snapshot, one history ledger
// and one persistence gateway per process.
package inventory

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"mise/internal/history"
	"mise/internal/models"
	"mise/internal/storage"
)

// ActionHistoryCleared marks the Change sent by ClearHistory. It is never
// written to the ledger.
const ActionHistoryCleared models.Action = "history_cleared"

// Metrics receives counts for every mutation and failed save.
type Metrics interface {
	RecordMutation(action models.Action)
	RecordPersistenceFailure(resource string)
}

type nopMetrics struct{}

func (nopMetrics) RecordMutation(models.Action) {}
func (nopMetrics) RecordPersistenceFailure(string) {}

// Result is returned by every mutation.
type Result struct {
	Snapshot *models.Snapshot    `json:"inventory"`
	Entry    models.HistoryEntry `json:"entry"`
}

// Change describes a committed mutation to subscribers.
type Change struct {
	Action   models.Action
	Entry    *models.HistoryEntry
	Snapshot *models.Snapshot
	Degraded bool
}

// SearchResult is one item matched by Search.
type SearchResult struct {
	Category models.Category `json:"category"`
	Item     string          `json:"item"`
	Quantity models.Quantity `json:"quantity"`
}

// LeftoverItem is a stocked item flagged for priority use.
type LeftoverItem struct {
	Category models.Category `json:"category"`
	Item     string          `json:"item"`
	Quantity models.Quantity `json:"quantity"`
}

type itemKey struct {
	category models.Category
	item     string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCategories adds recognized categories on top of those found in storage.
func WithCategories(categories ...models.Category) Option {
	return func(s *Service) { s.categories = append(s.categories, categories...) }
}

// WithMetrics reports mutations and save failures to m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLedgerOptions passes options to the history ledger.
func WithLedgerOptions(opts ...history.Option) Option {
	return func(s *Service) { s.ledgerOpts = append(s.ledgerOpts, opts...) }
}

// Service serializes every mutation through one exclusive lock held across
// the read-modify-append-persist sequence. Readers share the lock and always
// see a whole snapshot.
type Service struct {
	mu        sync.RWMutex
	snapshot  *models.Snapshot
	ledger    *history.Ledger
	gateway   storage.Gateway
	leftovers []itemKey
	degraded  bool
	warnings  []error

	listeners []func(Change)

	categories []models.Category
	ledgerOpts []history.Option
	logger     *slog.Logger
	metrics    Metrics
}

// Open loads the last committed state from gw. Corrupt or unreadable
// resources fall back to defaults; their warnings are logged and kept for
// LoadWarnings.
func Open(ctx context.Context, gw storage.Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gw,
		logger:  slog.Default(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	state := gw.Load(ctx)
	s.snapshot = state.Snapshot
	if s.snapshot == nil {
		s.snapshot = models.NewSnapshot()
	}
	for _, c := range s.categories {
		s.snapshot.AddCategory(c)
	}
	s.ledger = history.New(state.History, s.ledgerOpts...)
	s.warnings = state.Warnings

	for _, w := range state.Warnings {
		s.logger.Warn("inventory: falling back to defaults", "error", w)
	}
	s.logger.Info("inventory: loaded",
		"categories", len(s.snapshot.Categories()),
		"items", s.snapshot.Len(),
		"history_entries", s.ledger.Len(),
	)
	return s
}

// LoadWarnings returns the warnings raised while loading.
func (s *Service) LoadWarnings() []error {
	return append([]error(nil), s.warnings...)
}

// Degraded reports whether the last save failed.
func (s *Service) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Subscribe registers fn to receive every committed change. Listeners run
// while the write lock is held, in commit order, and must not call back into
// the Service.
func (s *Service) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Categories lists the recognized categories in order.
func (s *Service) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Categories()
}

// AddItem stocks name under category, replacing any existing quantity.
func (s *Service) AddItem(ctx context.Context, category models.Category, name string, amount decimal.Decimal, unit models.Unit) (Result, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateItem(category, name); err != nil {
		return Result{}, err
	}
	if err := validateQuantity(amount, unit); err != nil {
		return Result{}, err
	}

	s.snapshot.Set(category, name, models.Quantity{Amount: amount, Unit: unit})
	return s.commit(ctx, models.ActionAdded, category, name, amount, unit)
}

// UpdateItem replaces the quantity of an item that is already stocked.
func (s *Service) UpdateItem(ctx context.Context, category models.Category, name string, amount decimal.Decimal, unit models.Unit) (Result, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateItem(category, name); err != nil {
		return Result{}, err
	}
	if _, ok := s.snapshot.Get(category, name); !ok {
		return Result{}, &NotFoundError{Category: category, Item: name}
	}
	if err := validateQuantity(amount, unit); err != nil {
		return Result{}, err
	}

	s.snapshot.Set(category, name, models.Quantity{Amount: amount, Unit: unit})
	return s.commit(ctx, models.ActionUpdated, category, name, amount, unit)
}

// RemoveItem deletes an item. The history entry carries the quantity it had.
func (s *Service) RemoveItem(ctx context.Context, category models.Category, name string) (Result, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateItem(category, name); err != nil {
		return Result{}, err
	}
	current, ok := s.snapshot.Get(category, name)
	if !ok {
		return Result{}, &NotFoundError{Category: category, Item: name}
	}

	s.snapshot.Delete(category, name)
	s.dropLeftover(category, name)
	return s.commit(ctx, models.ActionRemoved, category, name, current.Amount, current.Unit)
}

// UseItem deducts amount from an item. Stock never goes negative: the
// deduction is clamped to what is left and an item that reaches zero is
// removed. The history entry carries the amount actually deducted.
func (s *Service) UseItem(ctx context.Context, category models.Category, name string, amount decimal.Decimal) (Result, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateItem(category, name); err != nil {
		return Result{}, err
	}
	if err := validateAmount(amount); err != nil {
		return Result{}, err
	}
	current, ok := s.snapshot.Get(category, name)
	if !ok {
		return Result{}, &NotFoundError{Category: category, Item: name}
	}

	remaining, deducted := current.Sub(amount)
	if remaining.IsZero() {
		s.snapshot.Delete(category, name)
		s.dropLeftover(category, name)
	} else {
		s.snapshot.Set(category, name, remaining)
	}
	return s.commit(ctx, models.ActionUsed, category, name, deducted, current.Unit)
}

// ClearHistory truncates the ledger and saves. Clearing adds no entry.
func (s *Service) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Clear()
	err := s.persist(ctx)
	s.logger.Info("inventory: history cleared")
	s.notify(Change{Action: ActionHistoryCleared, Snapshot: s.snapshot.Clone(), Degraded: err != nil})
	return err
}

// ListCategory returns the items of one category in insertion order.
func (s *Service) ListCategory(category models.Category) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.snapshot.HasCategory(category) {
		return nil, invalid("category", "unknown category %q", category)
	}
	return s.snapshot.Items(category), nil
}

// Snapshot returns a copy of the current inventory.
func (s *Service) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Latest returns the n most recent history entries, newest first.
func (s *Service) Latest(n int) []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Latest(n)
}

// History returns every history entry in the order it was recorded.
func (s *Service) History() []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Entries()
}

// WriteHistoryCSV exports the ledger as CSV.
func (s *Service) WriteHistoryCSV(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.WriteCSV(w)
}

// Search matches item names containing query, ignoring case.
func (s *Service) Search(query string) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SearchResult
	for _, c := range s.snapshot.Categories() {
		for _, it := range s.snapshot.Items(c) {
			if strings.Contains(strings.ToLower(it.Name), query) {
				out = append(out, SearchResult{Category: c, Item: it.Name, Quantity: it.Quantity})
			}
		}
	}
	return out
}

// MarkLeftover flags a stocked item for priority use. Flags live in memory
// only and are dropped when the item leaves stock.
func (s *Service) MarkLeftover(category models.Category, name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshot.Get(category, name); !ok {
		return &NotFoundError{Category: category, Item: name}
	}
	key := itemKey{category: category, item: name}
	for _, k := range s.leftovers {
		if k == key {
			return nil
		}
	}
	s.leftovers = append(s.leftovers, key)
	return nil
}

// UnmarkLeftover clears a leftover flag. Unknown items are ignored.
func (s *Service) UnmarkLeftover(category models.Category, name string) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLeftover(category, name)
}

// Leftovers returns the flagged items in the order they were flagged.
func (s *Service) Leftovers() []LeftoverItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LeftoverItem, 0, len(s.leftovers))
	for _, k := range s.leftovers {
		if q, ok := s.snapshot.Get(k.category, k.item); ok {
			out = append(out, LeftoverItem{Category: k.category, Item: k.item, Quantity: q})
		}
	}
	return out
}

func (s *Service) dropLeftover(category models.Category, name string) {
	key := itemKey{category: category, item: name}
	for i, k := range s.leftovers {
		if k == key {
			s.leftovers = append(s.leftovers[:i], s.leftovers[i+1:]...)
			return
		}
	}
}

func (s *Service) validateItem(category models.Category, name string) error {
	if !s.snapshot.HasCategory(category) {
		return invalid("category", "unknown category %q", category)
	}
	if name == "" {
		return invalid("item", "name is required")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if err := models.CheckAmount(amount); err != nil {
		return invalid("amount", "%v", err)
	}
	return nil
}

func validateQuantity(amount decimal.Decimal, unit models.Unit) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if !unit.Valid() {
		return invalid("unit", "unknown unit %q", unit)
	}
	return nil
}

// commit records the entry, saves, and notifies. The caller holds the write
// lock and has already applied the mutation to s.snapshot.
func (s *Service) commit(ctx context.Context, action models.Action, category models.Category, name string, amount decimal.Decimal, unit models.Unit) (Result, error) {
	entry := s.ledger.Record(action, category, name, amount, unit)
	s.metrics.RecordMutation(action)

	err := s.persist(ctx)
	res := Result{Snapshot: s.snapshot.Clone(), Entry: entry}
	s.notify(Change{Action: action, Entry: &entry, Snapshot: res.Snapshot, Degraded: err != nil})
	return res, err
}

// persist saves both resources. A failure keeps the in-memory state and
// marks the service degraded until a later save succeeds.
func (s *Service) persist(ctx context.Context) error {
	err := s.gateway.Save(ctx, s.snapshot, s.ledger.Entries())
	if err != nil {
		for _, f := range persistenceFailures(err) {
			s.metrics.RecordPersistenceFailure(f.Resource)
		}
		if !s.degraded {
			s.logger.Warn("inventory: save failed, running in memory only", "error", err)
		}
		s.degraded = true
		return err
	}
	if s.degraded {
		s.logger.Info("inventory: save recovered")
	}
	s.degraded = false
	return nil
}

func (s *Service) notify(c Change) {
	for _, fn := range s.listeners {
		fn(c)
	}
}
