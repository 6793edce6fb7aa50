// Package recipes matches recipe requirements against the inventory and
// deducts the ingredients a cooked recipe used.
package recipes

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"mise/internal/inventory"
	"mise/internal/models"
)

// DefaultUseAmount is deducted per ingredient when none is configured.
var DefaultUseAmount = decimal.NewFromFloat(0.5)

// Stock is the part of the inventory service the matcher deducts through.
type Stock interface {
	UseItem(ctx context.Context, category models.Category, name string, amount decimal.Decimal) (inventory.Result, error)
}

// MissingIngredient is a required item absent from its category.
type MissingIngredient struct {
	Item     string          `json:"item"`
	Category models.Category `json:"category"`
}

// Availability reports whether every ingredient of a recipe is stocked.
type Availability struct {
	Available bool                `json:"available"`
	Missing   []MissingIngredient `json:"missing"`
}

// Usage is one deduction made by ApplyRecipe.
type Usage struct {
	Category models.Category `json:"category"`
	Item     string          `json:"item"`
	Deducted decimal.Decimal `json:"deducted"`
	Unit     models.Unit     `json:"unit"`
	Removed  bool            `json:"removed"`
}

// Matcher checks and applies recipes against an inventory.
type Matcher struct {
	stock Stock
}

// NewMatcher returns a Matcher that deducts through stock.
func NewMatcher(stock Stock) *Matcher {
	return &Matcher{stock: stock}
}

// CheckAvailability tests every ingredient for presence in its category.
// Quantities are not considered; any stocked amount counts.
func (m *Matcher) CheckAvailability(recipe models.Recipe, snapshot *models.Snapshot) Availability {
	return CheckAvailability(recipe, snapshot)
}

// CheckAvailability is Matcher.CheckAvailability without a stock.
func CheckAvailability(recipe models.Recipe, snapshot *models.Snapshot) Availability {
	missing := []MissingIngredient{}
	for _, req := range recipe.Requirements() {
		if _, ok := snapshot.Get(req.Category, req.Item); !ok {
			missing = append(missing, MissingIngredient{Item: req.Item, Category: req.Category})
		}
	}
	return Availability{Available: len(missing) == 0, Missing: missing}
}

// ApplyRecipe deducts min(current, useAmount) of every ingredient present in
// snapshot, one "used" history entry each. Absent ingredients are skipped, so
// a recipe may be applied partially; call CheckAvailability first when that
// matters. Save failures do not stop the remaining deductions; they are
// returned joined once every ingredient has been processed.
func (m *Matcher) ApplyRecipe(ctx context.Context, recipe models.Recipe, snapshot *models.Snapshot, useAmount decimal.Decimal) ([]Usage, error) {
	if !useAmount.IsPositive() {
		return nil, &inventory.ValidationError{Field: "use_amount", Message: "must be greater than zero"}
	}

	var (
		usages   []Usage
		warnings []error
	)
	for _, req := range recipe.Requirements() {
		current, ok := snapshot.Get(req.Category, req.Item)
		if !ok {
			continue
		}
		amount := decimal.Min(current.Amount, useAmount)

		res, err := m.stock.UseItem(ctx, req.Category, req.Item, amount)
		switch {
		case err == nil:
		case inventory.IsDegraded(err):
			warnings = append(warnings, err)
		case inventory.IsNotFound(err):
			// used up since the snapshot was taken
			continue
		default:
			return usages, err
		}

		_, stillStocked := res.Snapshot.Get(req.Category, req.Item)
		usages = append(usages, Usage{
			Category: req.Category,
			Item:     req.Item,
			Deducted: res.Entry.Quantity,
			Unit:     res.Entry.Unit,
			Removed:  !stillStocked,
		})
	}
	return usages, errors.Join(warnings...)
}
