// Package alerts derives low-stock and shopping-list views from a snapshot.
//
// Amounts are compared to the threshold without unit conversion: 1.5 kg and
// 1.5 pcs are both below a threshold of 2.
package alerts

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mise/internal/models"
)

// DefaultThreshold is the low-stock threshold used when none is configured.
var DefaultThreshold = decimal.NewFromInt(2)

// LowStockItem is an item whose amount is below the threshold.
type LowStockItem struct {
	Category models.Category `json:"category"`
	Item     string          `json:"item"`
	Quantity models.Quantity `json:"quantity"`
}

// ShoppingListEntry is a LowStockItem formatted for a shopping list.
type ShoppingListEntry struct {
	Category  models.Category `json:"category"`
	Item      string          `json:"item"`
	Current   models.Quantity `json:"current"`
	Threshold decimal.Decimal `json:"threshold"`
}

// String renders the entry as "item (category): Current: amount unit".
func (e ShoppingListEntry) String() string {
	return fmt.Sprintf("%s (%s): Current: %s", e.Item, e.Category, e.Current)
}

// LowStock returns every item whose amount is strictly below threshold, in
// category order and then item order.
func LowStock(snapshot *models.Snapshot, threshold decimal.Decimal) []LowStockItem {
	var out []LowStockItem
	for _, c := range snapshot.Categories() {
		for _, it := range snapshot.Items(c) {
			if it.Quantity.Amount.LessThan(threshold) {
				out = append(out, LowStockItem{Category: c, Item: it.Name, Quantity: it.Quantity})
			}
		}
	}
	return out
}

// ShoppingList returns the same selection as LowStock as list entries.
func ShoppingList(snapshot *models.Snapshot, threshold decimal.Decimal) []ShoppingListEntry {
	low := LowStock(snapshot, threshold)
	out := make([]ShoppingListEntry, 0, len(low))
	for _, l := range low {
		out = append(out, ShoppingListEntry{
			Category:  l.Category,
			Item:      l.Item,
			Current:   l.Quantity,
			Threshold: threshold,
		})
	}
	return out
}
