package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"mise/internal/inventory"
	"mise/internal/models"
)

// quantityRequest accepts either "quantity": "1.5 kg" or separate amount and unit.
type quantityRequest struct {
	Quantity string           `json:"quantity"`
	Amount   *decimal.Decimal `json:"amount"`
	Unit     string           `json:"unit"`
}

func (r quantityRequest) parse() (models.Quantity, error) {
	if r.Quantity != "" {
		return models.ParseQuantity(r.Quantity)
	}
	if r.Amount == nil {
		return models.Quantity{}, &inventory.ValidationError{Field: "quantity", Message: "quantity or amount and unit are required"}
	}
	return models.Quantity{Amount: *r.Amount, Unit: models.Unit(r.Unit)}, nil
}

type addItemRequest struct {
	Name string `json:"name"`
	quantityRequest
}

type useItemRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ListCategories returns the recognized categories and units
func (a *InventoryAPI) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": a.inventory.Categories(),
		"units":      models.Units(),
	})
}

// GetInventory returns the whole snapshot
func (a *InventoryAPI) GetInventory(c *gin.Context) {
	c.JSON(http.StatusOK, a.inventory.Snapshot())
}

// ListCategory returns one category's items in insertion order
func (a *InventoryAPI) ListCategory(c *gin.Context) {
	items, err := a.inventory.ListCategory(models.Category(c.Param("category")))
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	c.JSON(http.StatusOK, items)
}

// AddItem stocks an item, replacing any existing quantity
func (a *InventoryAPI) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := req.parse()
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	res, err := a.inventory.AddItem(c.Request.Context(), models.Category(c.Param("category")), req.Name, q.Amount, q.Unit)
	a.respondMutation(c, http.StatusCreated, res, err)
}

// UpdateItem replaces the quantity of a stocked item
func (a *InventoryAPI) UpdateItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := req.parse()
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	res, err := a.inventory.UpdateItem(c.Request.Context(), models.Category(c.Param("category")), c.Param("item"), q.Amount, q.Unit)
	a.respondMutation(c, http.StatusOK, res, err)
}

// RemoveItem deletes a stocked item
func (a *InventoryAPI) RemoveItem(c *gin.Context) {
	res, err := a.inventory.RemoveItem(c.Request.Context(), models.Category(c.Param("category")), c.Param("item"))
	a.respondMutation(c, http.StatusOK, res, err)
}

// UseItem deducts an amount from a stocked item
func (a *InventoryAPI) UseItem(c *gin.Context) {
	var req useItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := a.inventory.UseItem(c.Request.Context(), models.Category(c.Param("category")), c.Param("item"), req.Amount)
	a.respondMutation(c, http.StatusOK, res, err)
}

func (a *InventoryAPI) respondMutation(c *gin.Context, status int, res inventory.Result, err error) {
	if err != nil && !inventory.IsDegraded(err) {
		a.abortWithError(c, err)
		return
	}
	c.JSON(status, withWarning(gin.H{"inventory": res.Snapshot, "entry": res.Entry}, err))
}

// Search finds items whose name contains q
func (a *InventoryAPI) Search(c *gin.Context) {
	results := a.inventory.Search(c.Query("q"))
	if results == nil {
		results = []inventory.SearchResult{}
	}
	c.JSON(http.StatusOK, results)
}

// GetHistory returns the latest entries, newest first
func (a *InventoryAPI) GetHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, a.inventory.Latest(limit))
}

// ExportHistory streams the whole ledger as CSV
func (a *InventoryAPI) ExportHistory(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="inventory_history.csv"`)
	c.Status(http.StatusOK)
	if err := a.inventory.WriteHistoryCSV(c.Writer); err != nil {
		a.logger.Error("api: history export failed", "error", err)
	}
}

// ClearHistory truncates the ledger
func (a *InventoryAPI) ClearHistory(c *gin.Context) {
	err := a.inventory.ClearHistory(c.Request.Context())
	if err != nil && !inventory.IsDegraded(err) {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"status": "cleared"}, err))
}

// ListLeftovers returns items flagged for priority use
func (a *InventoryAPI) ListLeftovers(c *gin.Context) {
	c.JSON(http.StatusOK, a.inventory.Leftovers())
}

// MarkLeftover flags a stocked item for priority use
func (a *InventoryAPI) MarkLeftover(c *gin.Context) {
	if err := a.inventory.MarkLeftover(models.Category(c.Param("category")), c.Param("item")); err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.inventory.Leftovers())
}

// UnmarkLeftover clears a leftover flag
func (a *InventoryAPI) UnmarkLeftover(c *gin.Context) {
	a.inventory.UnmarkLeftover(models.Category(c.Param("category")), c.Param("item"))
	c.JSON(http.StatusOK, a.inventory.Leftovers())
}
