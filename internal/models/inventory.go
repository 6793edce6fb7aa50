package models

// Category names a shelf of the inventory. Categories are predefined by
// configuration; items inside them are not.
type Category string

const (
	// Default categories
	CategoryVegetables Category = "vegetables"
	CategoryProteins   Category = "proteins"
	CategorySauces     Category = "sauces"
	CategoryGrains     Category = "grains"
)

// DefaultCategories returns the categories a fresh inventory starts with.
func DefaultCategories() []Category {
	return []Category{CategoryVegetables, CategoryProteins, CategorySauces, CategoryGrains}
}

// Unit is the unit of measurement attached to a quantity.
type Unit string

const (
	// Mass units
	UnitKilogram Unit = "kg"
	UnitGram     Unit = "g"

	// Volume units
	UnitLiter      Unit = "liter"
	UnitMilliliter Unit = "ml"

	// Count units
	UnitPiece  Unit = "pcs"
	UnitBottle Unit = "bottle"

	// Informal culinary units
	UnitBunch      Unit = "bunch"
	UnitCup        Unit = "cup"
	UnitTablespoon Unit = "tbsp"
	UnitTeaspoon   Unit = "tsp"
)

var knownUnits = map[Unit]bool{
	UnitKilogram:   true,
	UnitGram:       true,
	UnitLiter:      true,
	UnitMilliliter: true,
	UnitPiece:      true,
	UnitBottle:     true,
	UnitBunch:      true,
	UnitCup:        true,
	UnitTablespoon: true,
	UnitTeaspoon:   true,
}

// Units lists the unit vocabulary in display order.
func Units() []Unit {
	return []Unit{
		UnitKilogram, UnitGram, UnitLiter, UnitMilliliter, UnitPiece,
		UnitBunch, UnitCup, UnitTablespoon, UnitTeaspoon, UnitBottle,
	}
}

// Valid reports whether u belongs to the unit vocabulary.
func (u Unit) Valid() bool {
	return knownUnits[u]
}

// Item is a named quantity inside a category.
type Item struct {
	Name     string   `json:"name"`
	Quantity Quantity `json:"quantity"`
}
