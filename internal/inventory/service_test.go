package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/models"
	"mise/internal/storage"
)

// memGateway keeps saved state in memory and can be told to fail.
type memGateway struct {
	mu       sync.Mutex
	snapshot *models.Snapshot
	history  []models.HistoryEntry
	warnings []error
	fail     error
	saves    int
}

func (g *memGateway) Load(context.Context) storage.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := models.NewSnapshot()
	if g.snapshot != nil {
		snap = g.snapshot.Clone()
	}
	return storage.State{Snapshot: snap, History: g.history, Warnings: g.warnings}
}

func (g *memGateway) Save(_ context.Context, snapshot *models.Snapshot, history []models.HistoryEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return errors.Join(
			&storage.PersistenceError{Resource: storage.ResourceInventory, Op: "save", Err: g.fail},
			&storage.PersistenceError{Resource: storage.ResourceHistory, Op: "save", Err: g.fail},
		)
	}
	g.saves++
	g.snapshot = snapshot.Clone()
	g.history = append([]models.HistoryEntry(nil), history...)
	return nil
}

func (g *memGateway) Close() error { return nil }

func (g *memGateway) setFail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

type countingMetrics struct {
	mu        sync.Mutex
	mutations map[models.Action]int
	failures  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{mutations: map[models.Action]int{}, failures: map[string]int{}}
}

func (m *countingMetrics) RecordMutation(a models.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations[a]++
}

func (m *countingMetrics) RecordPersistenceFailure(r string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[r]++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, gw storage.Gateway, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithCategories(models.DefaultCategories()...)}, opts...)
	return Open(context.Background(), gw, opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddThenRemove(t *testing.T) {
	gw := &memGateway{}
	svc := newService(t, gw)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, models.CategoryProteins, "X", dec("3"), models.UnitKilogram)
	require.NoError(t, err)
	_, err = svc.RemoveItem(ctx, models.CategoryProteins, "X")
	require.NoError(t, err)

	items, err := svc.ListCategory(models.CategoryProteins)
	require.NoError(t, err)
	assert.Empty(t, items)

	last := svc.Latest(1)
	require.Len(t, last, 1)
	assert.Equal(t, models.ActionRemoved, last[0].Action)
	assert.Equal(t, "X", last[0].Item)
	assert.True(t, last[0].Quantity.Equal(dec("3")))
	assert.Equal(t, models.UnitKilogram, last[0].Unit)

	assert.Equal(t, 2, gw.saves)
	assert.Len(t, gw.history, 2)
}

func TestAddOverwritesExistingItem(t *testing.T) {
	svc := newService(t, &memGateway{})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, models.CategoryGrains, "rice", dec("1"), models.UnitKilogram)
	require.NoError(t, err)
	res, err := svc.AddItem(ctx, models.CategoryGrains, "rice", dec("500"), models.UnitGram)
	require.NoError(t, err)

	q, ok := res.Snapshot.Get(models.CategoryGrains, "rice")
	require.True(t, ok)
	assert.Equal(t, "500 g", q.String())
	assert.Equal(t, models.ActionAdded, res.Entry.Action)
}

func TestValidationLeavesStateUnchanged(t *testing.T) {
	gw := &memGateway{}
	svc := newService(t, gw)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, models.CategoryVegetables, "carrot", dec("2"), models.UnitPiece)
	require.NoError(t, err)
	before := svc.Snapshot()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"unknown category", func() error {
			_, err := svc.AddItem(ctx, "desserts", "cake", dec("1"), models.UnitPiece)
			return err
		}, "category"},
		{"empty name", func() error {
			_, err := svc.AddItem(ctx, models.CategoryVegetables, "  ", dec("1"), models.UnitPiece)
			return err
		}, "item"},
		{"negative amount", func() error {
			_, err := svc.AddItem(ctx, models.CategoryVegetables, "leek", dec("-1"), models.UnitPiece)
			return err
		}, "amount"},
		{"zero amount", func() error {
			_, err := svc.UpdateItem(ctx, models.CategoryVegetables, "carrot", decimal.Zero, models.UnitPiece)
			return err
		}, "amount"},
		{"unknown unit", func() error {
			_, err := svc.AddItem(ctx, models.CategoryVegetables, "leek", dec("1"), "handful")
			return err
		}, "unit"},
		{"exponent too large", func() error {
			_, err := svc.AddItem(ctx, models.CategoryVegetables, "leek", dec("1e100000000"), models.UnitPiece)
			return err
		}, "amount"},
		{"too many decimal places", func() error {
			_, err := svc.UpdateItem(ctx, models.CategoryVegetables, "carrot", dec("1e-100000000"), models.UnitPiece)
			return err
		}, "amount"},
		{"use exponent too large", func() error {
			_, err := svc.UseItem(ctx, models.CategoryVegetables, "carrot", dec("1e100000000"))
			return err
		}, "amount"},
		{"zero use", func() error {
			_, err := svc.UseItem(ctx, models.CategoryVegetables, "carrot", decimal.Zero)
			return err
		}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.True(t, IsValidation(err))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.True(t, before.Equal(svc.Snapshot()))
	assert.Len(t, svc.History(), 1)
	assert.Equal(t, 1, gw.saves)
}

func TestMissingItemsReturnNotFound(t *testing.T) {
	svc := newService(t, &memGateway{})
	ctx := context.Background()

	_, err := svc.UpdateItem(ctx, models.CategoryProteins, "seitan", dec("1"), models.UnitKilogram)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.RemoveItem(ctx, models.CategoryProteins, "seitan")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, models.CategoryProteins, nf.Category)
	assert.Equal(t, "seitan", nf.Item)

	_, err = svc.UseItem(ctx, models.CategoryProteins, "seitan", dec("1"))
	assert.True(t, IsNotFound(err))

	assert.Empty(t, svc.History())
}

func TestUseItemClampsAndRemoves(t *testing.T) {
	svc := newService(t, &memGateway{})
	ctx := context.Background()
	_, err := svc.AddItem(ctx, models.CategorySauces, "tahini", dec("1"), models.UnitCup)
	require.NoError(t, err)

	res, err := svc.UseItem(ctx, models.CategorySauces, "tahini", dec("0.25"))
	require.NoError(t, err)
	q, _ := res.Snapshot.Get(models.CategorySauces, "tahini")
	assert.Equal(t, "0.75 cup", q.String())
	assert.True(t, res.Entry.Quantity.Equal(dec("0.25")))

	res, err = svc.UseItem(ctx, models.CategorySauces, "tahini", dec("3"))
	require.NoError(t, err)
	_, ok := res.Snapshot.Get(models.CategorySauces, "tahini")
	assert.False(t, ok, "item is removed once it reaches zero")
	assert.Equal(t, models.ActionUsed, res.Entry.Action)
	assert.True(t, res.Entry.Quantity.Equal(dec("0.75")), "entry carries the deducted amount, got %s", res.Entry.Quantity)
	assert.Equal(t, models.UnitCup, res.Entry.Unit)
}

func TestSaveFailureKeepsMutationAndDegrades(t *testing.T) {
	gw := &memGateway{}
	metrics := newCountingMetrics()
	svc := newService(t, gw, WithMetrics(metrics))
	ctx := context.Background()

	gw.setFail(errors.New("disk full"))
	res, err := svc.AddItem(ctx, models.CategoryGrains, "quinoa", dec("2"), models.UnitCup)

	require.Error(t, err)
	assert.True(t, IsDegraded(err))
	assert.ErrorIs(t, err, storage.ErrPersistence)
	assert.True(t, svc.Degraded())
	_, ok := res.Snapshot.Get(models.CategoryGrains, "quinoa")
	assert.True(t, ok, "mutation is kept in memory")
	assert.Equal(t, 1, metrics.failures[storage.ResourceInventory])
	assert.Equal(t, 1, metrics.failures[storage.ResourceHistory])

	gw.setFail(nil)
	_, err = svc.UseItem(ctx, models.CategoryGrains, "quinoa", dec("1"))
	require.NoError(t, err)
	assert.False(t, svc.Degraded())
	assert.Len(t, gw.history, 2, "the next successful save carries both entries")
	assert.Equal(t, 1, metrics.mutations[models.ActionAdded])
	assert.Equal(t, 1, metrics.mutations[models.ActionUsed])
}

func TestClearHistoryPersistsWithoutEntry(t *testing.T) {
	gw := &memGateway{}
	svc := newService(t, gw)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, models.CategoryVegetables, "onion", dec("3"), models.UnitPiece)
	require.NoError(t, err)

	var changes []Change
	svc.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, svc.ClearHistory(ctx))

	assert.Empty(t, svc.History())
	assert.Empty(t, gw.history)
	assert.Equal(t, 2, gw.saves)
	require.Len(t, changes, 1)
	assert.Equal(t, ActionHistoryCleared, changes[0].Action)
	assert.Nil(t, changes[0].Entry)
	_, ok := svc.Snapshot().Get(models.CategoryVegetables, "onion")
	assert.True(t, ok)
}

func TestOpenFallsBackOnCorruptStorage(t *testing.T) {
	dir := t.TempDir()
	inv := filepath.Join(dir, "inventory.json")
	require.NoError(t, os.WriteFile(inv, []byte("{not json"), 0o644))

	var logs bytes.Buffer
	svc := Open(context.Background(),
		storage.NewFileGateway(inv, filepath.Join(dir, "history.json")),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithCategories(models.DefaultCategories()...),
	)

	require.Len(t, svc.LoadWarnings(), 1)
	assert.ErrorIs(t, svc.LoadWarnings()[0], storage.ErrPersistence)
	assert.Equal(t, models.DefaultCategories(), svc.Categories())
	assert.Contains(t, logs.String(), "falling back to defaults")
}

func TestOpenKeepsStoredCategories(t *testing.T) {
	stored := models.NewSnapshot("spices")
	stored.Set("spices", "cumin", models.NewQuantity(50, models.UnitGram))
	svc := newService(t, &memGateway{snapshot: stored})

	assert.Equal(t, []models.Category{"spices", models.CategoryVegetables, models.CategoryProteins, models.CategorySauces, models.CategoryGrains}, svc.Categories())
	items, err := svc.ListCategory("spices")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cumin", items[0].Name)

	_, err = svc.ListCategory("desserts")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSnapshotIsACopy(t *testing.T) {
	svc := newService(t, &memGateway{})
	_, err := svc.AddItem(context.Background(), models.CategoryProteins, "tofu", dec("1"), models.UnitKilogram)
	require.NoError(t, err)

	snap := svc.Snapshot()
	snap.Delete(models.CategoryProteins, "tofu")

	_, ok := svc.Snapshot().Get(models.CategoryProteins, "tofu")
	assert.True(t, ok)
}

func TestSubscribeReceivesChangesInOrder(t *testing.T) {
	svc := newService(t, &memGateway{})
	ctx := context.Background()

	var actions []models.Action
	svc.Subscribe(func(c Change) {
		actions = append(actions, c.Action)
		require.NotNil(t, c.Snapshot)
	})

	_, err := svc.AddItem(ctx, models.CategoryProteins, "tempeh", dec("2"), models.UnitPiece)
	require.NoError(t, err)
	_, err = svc.UpdateItem(ctx, models.CategoryProteins, "tempeh", dec("3"), models.UnitPiece)
	require.NoError(t, err)
	_, err = svc.UseItem(ctx, models.CategoryProteins, "tempeh", dec("1"))
	require.NoError(t, err)
	_, err = svc.RemoveItem(ctx, models.CategoryProteins, "tempeh")
	require.NoError(t, err)

	assert.Equal(t, []models.Action{models.ActionAdded, models.ActionUpdated, models.ActionUsed, models.ActionRemoved}, actions)
}

func TestSearch(t *testing.T) {
	svc := newService(t, &memGateway{})
	ctx := context.Background()
	for _, it := range []struct {
		cat  models.Category
		name string
	}{
		{models.CategoryVegetables, "Red Bell Pepper"},
		{models.CategoryVegetables, "carrot"},
		{models.CategorySauces, "pepper sauce"},
	} {
		_, err := svc.AddItem(ctx, it.cat, it.name, dec("1"), models.UnitPiece)
		require.NoError(t, err)
	}

	results := svc.Search("PEPPER")
	require.Len(t, results, 2)
	assert.Equal(t, "Red Bell Pepper", results[0].Item)
	assert.Equal(t, models.CategorySauces, results[1].Category)

	assert.Empty(t, svc.Search("  "))
	assert.Empty(t, svc.Search("seitan"))
}

func TestLeftovers(t *testing.T) {
	svc := newService(t, &memGateway{})
	ctx := context.Background()
	_, err := svc.AddItem(ctx, models.CategoryGrains, "rice", dec("0.5"), models.UnitKilogram)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, models.CategoryVegetables, "broccoli", dec("1"), models.UnitBunch)
	require.NoError(t, err)

	require.NoError(t, svc.MarkLeftover(models.CategoryGrains, "rice"))
	require.NoError(t, svc.MarkLeftover(models.CategoryVegetables, "broccoli"))
	require.NoError(t, svc.MarkLeftover(models.CategoryGrains, " rice "))
	assert.ErrorIs(t, svc.MarkLeftover(models.CategoryGrains, "barley"), ErrNotFound)

	left := svc.Leftovers()
	require.Len(t, left, 2)
	assert.Equal(t, "rice", left[0].Item)

	_, err = svc.UseItem(ctx, models.CategoryGrains, "rice", dec("1"))
	require.NoError(t, err)
	left = svc.Leftovers()
	require.Len(t, left, 1, "used-up leftovers are dropped")
	assert.Equal(t, "broccoli", left[0].Item)

	svc.UnmarkLeftover(models.CategoryVegetables, "broccoli ")
	assert.Empty(t, svc.Leftovers())
}

func TestRapidMutationsKeepDocumentsValid(t *testing.T) {
	dir := t.TempDir()
	gw := storage.NewFileGateway(filepath.Join(dir, "inventory.json"), filepath.Join(dir, "history.json"))
	svc := newService(t, gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			name := fmt.Sprintf("item-%d", w%3)
			for i := 0; i < 20; i++ {
				switch i % 4 {
				case 0:
					svc.AddItem(ctx, models.CategoryVegetables, name, dec("1.5"), models.UnitKilogram)
				case 1:
					svc.UseItem(ctx, models.CategoryVegetables, name, dec("0.7"))
				case 2:
					svc.UpdateItem(ctx, models.CategoryVegetables, name, dec("0.3"), models.UnitKilogram)
				case 3:
					svc.UseItem(ctx, models.CategoryVegetables, name, dec("0.5"))
				}
				if i%7 == 6 {
					svc.RemoveItem(ctx, models.CategoryVegetables, name)
				}
			}
		}(w)
	}
	wg.Wait()

	for _, it := range svc.Snapshot().Items(models.CategoryVegetables) {
		assert.True(t, it.Quantity.Amount.IsPositive(), "%s has non-positive amount %s", it.Name, it.Quantity)
	}

	state := gw.Load(ctx)
	require.Empty(t, state.Warnings, "persisted documents must parse")
	assert.True(t, svc.Snapshot().Equal(state.Snapshot))
	entries := svc.History()
	require.Len(t, state.History, len(entries))
	for i := range entries {
		assert.Equal(t, entries[i].ID, state.History[i].ID)
		assert.True(t, entries[i].Quantity.Equal(state.History[i].Quantity))
	}
}
