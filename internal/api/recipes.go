package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mise/internal/advisor"
	"mise/internal/alerts"
	"mise/internal/inventory"
	"mise/internal/models"
	"mise/internal/recipes"
)

type recipeStatus struct {
	models.Recipe
	recipes.Availability
}

type suggestionRequest struct {
	Ingredients []string `json:"ingredients"`
	Notes       string   `json:"notes"`
}

// LowStock lists items under the configured threshold
func (a *InventoryAPI) LowStock(c *gin.Context) {
	items := alerts.LowStock(a.inventory.Snapshot(), a.threshold)
	if items == nil {
		items = []alerts.LowStockItem{}
	}
	c.JSON(http.StatusOK, gin.H{"threshold": a.threshold, "items": items})
}

// ShoppingList returns low-stock items as shopping entries
func (a *InventoryAPI) ShoppingList(c *gin.Context) {
	entries := alerts.ShoppingList(a.inventory.Snapshot(), a.threshold)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	if entries == nil {
		entries = []alerts.ShoppingListEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "lines": lines})
}

// ListRecipes returns every recipe with its availability
func (a *InventoryAPI) ListRecipes(c *gin.Context) {
	snapshot := a.inventory.Snapshot()
	out := make([]recipeStatus, 0, a.book.Len())
	for _, r := range a.book.Recipes() {
		out = append(out, recipeStatus{Recipe: r, Availability: a.matcher.CheckAvailability(r, snapshot)})
	}
	c.JSON(http.StatusOK, out)
}

// GetRecipe returns one recipe with its availability
func (a *InventoryAPI) GetRecipe(c *gin.Context) {
	r, ok := a.book.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}
	c.JSON(http.StatusOK, recipeStatus{Recipe: r, Availability: a.matcher.CheckAvailability(r, a.inventory.Snapshot())})
}

// ApplyRecipe deducts the use amount from every stocked ingredient
func (a *InventoryAPI) ApplyRecipe(c *gin.Context) {
	r, ok := a.book.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}

	usages, err := a.matcher.ApplyRecipe(c.Request.Context(), r, a.inventory.Snapshot(), a.useAmount)
	if err != nil && !inventory.IsDegraded(err) {
		a.abortWithError(c, err)
		return
	}
	if usages == nil {
		usages = []recipes.Usage{}
	}
	c.JSON(http.StatusOK, withWarning(gin.H{
		"recipe":    r.Name,
		"usages":    usages,
		"inventory": a.inventory.Snapshot(),
	}, err))
}

// SuggestRecipe asks the advisor for a dish. With no ingredients given, every
// stocked item is offered.
func (a *InventoryAPI) SuggestRecipe(c *gin.Context) {
	req, ok := a.bindSuggestion(c)
	if !ok {
		return
	}
	snapshot := a.inventory.Snapshot()
	if len(req.Ingredients) == 0 {
		for _, cat := range snapshot.Categories() {
			for _, item := range snapshot.Items(cat) {
				req.Ingredients = append(req.Ingredients, item.Name)
			}
		}
	}
	a.suggest(c, advisor.Request{
		Kind:        advisor.KindRecipe,
		Ingredients: req.Ingredients,
		Inventory:   snapshot,
		Notes:       req.Notes,
	})
}

// SuggestLeftovers asks the advisor how to use up leftovers. With no
// ingredients given, the flagged leftovers are used.
func (a *InventoryAPI) SuggestLeftovers(c *gin.Context) {
	req, ok := a.bindSuggestion(c)
	if !ok {
		return
	}
	if len(req.Ingredients) == 0 {
		for _, l := range a.inventory.Leftovers() {
			req.Ingredients = append(req.Ingredients, l.Item)
		}
	}
	a.suggest(c, advisor.Request{
		Kind:        advisor.KindLeftovers,
		Ingredients: req.Ingredients,
		Inventory:   a.inventory.Snapshot(),
		Notes:       req.Notes,
	})
}

func (a *InventoryAPI) bindSuggestion(c *gin.Context) (suggestionRequest, bool) {
	var req suggestionRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

func (a *InventoryAPI) suggest(c *gin.Context, req advisor.Request) {
	suggestion, err := a.advisor.Suggest(c.Request.Context(), req)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}
