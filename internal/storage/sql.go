package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
	"github.com/shopspring/decimal"

	"mise/internal/models"
)

// compile-time interface check
var _ Gateway = (*SQLGateway)(nil)

// categoryRow keeps empty categories visible after a reload.
type categoryRow struct {
	ID       uint `gorm:"primary_key"`
	Position int
	Name     string `gorm:"not null"`
}

// TableName sets the table name for categoryRow
func (categoryRow) TableName() string {
	return "inventory_categories"
}

// inventoryRow is one (category, item) quantity.
type inventoryRow struct {
	ID       uint `gorm:"primary_key"`
	Position int
	Category string `gorm:"not null;index"`
	Name     string `gorm:"not null"`
	Quantity string `gorm:"not null"`
}

// TableName sets the table name for inventoryRow
func (inventoryRow) TableName() string {
	return "inventory_items"
}

// historyRow is one ledger entry; Seq preserves append order.
type historyRow struct {
	ID         uint `gorm:"primary_key"`
	Seq        int
	EntryID    string `gorm:"column:entry_id;not null"`
	RecordedAt time.Time
	Action     string `gorm:"not null"`
	Category   string
	Item       string
	Quantity   string
	Unit       string
}

// TableName sets the table name for historyRow
func (historyRow) TableName() string {
	return "inventory_history"
}

// SQLGateway stores both resources in a relational database through gorm.
// Each resource is rewritten inside its own transaction.
type SQLGateway struct {
	db *gorm.DB
}

// OpenSQL connects with the given gorm dialect ("sqlite3" or "postgres") and
// migrates the schema.
func OpenSQL(dialect, dsn string) (*SQLGateway, error) {
	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect %s: %w", dialect, err)
	}
	if dialect == "sqlite3" {
		// sqlite allows one writer; a single connection also keeps ":memory:" databases shared.
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxIdleConns(10)
		db.DB().SetMaxOpenConns(100)
		db.DB().SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&categoryRow{}, &inventoryRow{}, &historyRow{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &SQLGateway{db: db}, nil
}

// Load reads both tables. A failing table yields defaults and a warning.
func (g *SQLGateway) Load(_ context.Context) State {
	state := State{Snapshot: models.NewSnapshot()}

	if snap, err := g.loadSnapshot(); err != nil {
		state.Warnings = append(state.Warnings, &PersistenceError{Resource: ResourceInventory, Op: "load", Err: err})
	} else {
		state.Snapshot = snap
	}

	if entries, err := g.loadHistory(); err != nil {
		state.Warnings = append(state.Warnings, &PersistenceError{Resource: ResourceHistory, Op: "load", Err: err})
	} else {
		state.History = entries
	}

	return state
}

func (g *SQLGateway) loadSnapshot() (*models.Snapshot, error) {
	var categories []categoryRow
	if err := g.db.Order("position").Find(&categories).Error; err != nil {
		return nil, err
	}
	var rows []inventoryRow
	if err := g.db.Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}

	snap := models.NewSnapshot()
	for _, c := range categories {
		snap.AddCategory(models.Category(c.Name))
	}
	for _, r := range rows {
		q, err := models.ParseQuantity(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item %s/%s: %w", r.Category, r.Name, err)
		}
		snap.Set(models.Category(r.Category), r.Name, q)
	}
	return snap, nil
}

func (g *SQLGateway) loadHistory() ([]models.HistoryEntry, error) {
	var rows []historyRow
	if err := g.db.Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		qty, err := decimal.NewFromString(r.Quantity)
		if err == nil {
			err = models.CheckAmount(qty.Abs())
		}
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", r.EntryID, err)
		}
		entries = append(entries, models.HistoryEntry{
			ID:       r.EntryID,
			Date:     models.NewTimestamp(r.RecordedAt),
			Action:   models.Action(r.Action),
			Category: models.Category(r.Category),
			Item:     r.Item,
			Quantity: qty,
			Unit:     models.Unit(r.Unit),
		})
	}
	return entries, nil
}

// Save rewrites the inventory tables and then the history table, each in its
// own transaction.
func (g *SQLGateway) Save(_ context.Context, snapshot *models.Snapshot, history []models.HistoryEntry) error {
	var errs []error
	if err := g.saveSnapshot(snapshot); err != nil {
		errs = append(errs, &PersistenceError{Resource: ResourceInventory, Op: "save", Err: err})
	}
	if err := g.saveHistory(history); err != nil {
		errs = append(errs, &PersistenceError{Resource: ResourceHistory, Op: "save", Err: err})
	}
	return errors.Join(errs...)
}

func (g *SQLGateway) saveSnapshot(snapshot *models.Snapshot) error {
	return g.inTransaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&categoryRow{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&inventoryRow{}).Error; err != nil {
			return err
		}
		pos := 0
		for i, c := range snapshot.Categories() {
			if err := tx.Create(&categoryRow{Position: i, Name: string(c)}).Error; err != nil {
				return err
			}
			for _, it := range snapshot.Items(c) {
				row := inventoryRow{Position: pos, Category: string(c), Name: it.Name, Quantity: it.Quantity.String()}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				pos++
			}
		}
		return nil
	})
}

func (g *SQLGateway) saveHistory(history []models.HistoryEntry) error {
	return g.inTransaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&historyRow{}).Error; err != nil {
			return err
		}
		for i, e := range history {
			row := historyRow{
				Seq:        i,
				EntryID:    e.ID,
				RecordedAt: e.Date.Time,
				Action:     string(e.Action),
				Category:   string(e.Category),
				Item:       e.Item,
				Quantity:   e.Quantity.String(),
				Unit:       string(e.Unit),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// inTransaction commits fn's writes as a whole or not at all.
func (g *SQLGateway) inTransaction(fn func(tx *gorm.DB) error) error {
	tx := g.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// Close closes the database connection.
func (g *SQLGateway) Close() error {
	return g.db.Close()
}
