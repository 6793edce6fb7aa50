// Package advisor asks a text-generation backend for recipe ideas. Advisors
// read a copy of the inventory and never change it.
package advisor

import (
	"context"
	"errors"

	"mise/internal/models"
)

// Kind selects the suggestion prompt.
type Kind string

const (
	// KindRecipe builds a dish from chosen ingredients.
	KindRecipe Kind = "recipe"
	// KindLeftovers finds ways to use up flagged leftovers.
	KindLeftovers Kind = "leftovers"
)

// SourceFallback marks suggestions made by the built-in generator.
const SourceFallback = "fallback"

var (
	// ErrNoIngredients is returned when a request names nothing to cook with.
	ErrNoIngredients = errors.New("advisor: no ingredients given")
	// ErrInvalidResponse is returned when a backend reply holds no usable suggestion.
	ErrInvalidResponse = errors.New("advisor: invalid response")
)

// Request describes what to suggest.
type Request struct {
	Kind        Kind
	Ingredients []string
	// Inventory is a read-only copy of current stock.
	Inventory *models.Snapshot
	Notes     string
}

// Suggestion is a generated recipe idea.
type Suggestion struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Ingredients     []string `json:"ingredients"`
	Instructions    []string `json:"instructions"`
	PreparationTime string   `json:"preparation_time"`
	Source          string   `json:"source"`
}

// Advisor produces a suggestion or fails.
type Advisor interface {
	Name() string
	Suggest(ctx context.Context, req Request) (*Suggestion, error)
}
