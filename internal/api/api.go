// Package api exposes the inventory over HTTP and a WebSocket change feed.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"mise/internal/advisor"
	"mise/internal/inventory"
	"mise/internal/monitoring"
	"mise/internal/recipes"
)

// Options holds the collaborators of an InventoryAPI.
type Options struct {
	Inventory *inventory.Service
	Book      *recipes.Book
	Advisor   advisor.Advisor
	Monitor   *monitoring.Monitor
	Feed      *Feed
	Logger    *slog.Logger

	LowStockThreshold decimal.Decimal
	UseAmount         decimal.Decimal
}

// InventoryAPI represents the HTTP handler for the inventory service
type InventoryAPI struct {
	Router *gin.Engine

	inventory *inventory.Service
	matcher   *recipes.Matcher
	book      *recipes.Book
	advisor   advisor.Advisor
	monitor   *monitoring.Monitor
	feed      *Feed
	logger    *slog.Logger

	threshold decimal.Decimal
	useAmount decimal.Decimal
}

// NewInventoryAPI creates the API and registers its routes
func NewInventoryAPI(opts Options) *InventoryAPI {
	router := gin.New()
	router.Use(gin.Recovery())

	a := &InventoryAPI{
		Router:    router,
		inventory: opts.Inventory,
		matcher:   recipes.NewMatcher(opts.Inventory),
		book:      opts.Book,
		advisor:   opts.Advisor,
		monitor:   opts.Monitor,
		feed:      opts.Feed,
		logger:    opts.Logger,
		threshold: opts.LowStockThreshold,
		useAmount: opts.UseAmount,
	}
	if a.book == nil {
		a.book = recipes.DefaultBook()
	}
	if a.advisor == nil {
		a.advisor = advisor.NewResilient(nil, advisor.NewFallback(0))
	}
	if a.monitor == nil {
		a.monitor = monitoring.NewMonitor()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.threshold.IsZero() {
		a.threshold = decimal.NewFromInt(2)
	}
	if a.useAmount.IsZero() {
		a.useAmount = recipes.DefaultUseAmount
	}

	router.Use(a.requestLogger())
	a.setupRoutes()
	return a
}

// setupRoutes configures all API endpoints
func (a *InventoryAPI) setupRoutes() {
	a.Router.GET("/health", a.Health)
	if a.feed != nil {
		a.Router.GET("/ws", a.feed.Handle)
	}

	v1 := a.Router.Group("/api/v1")
	{
		// Inventory
		v1.GET("/categories", a.ListCategories)
		v1.GET("/inventory", a.GetInventory)
		v1.GET("/inventory/:category", a.ListCategory)
		v1.POST("/inventory/:category", a.AddItem)
		v1.PUT("/inventory/:category/:item", a.UpdateItem)
		v1.DELETE("/inventory/:category/:item", a.RemoveItem)
		v1.POST("/inventory/:category/:item/use", a.UseItem)
		v1.GET("/search", a.Search)

		// History
		v1.GET("/history", a.GetHistory)
		v1.GET("/history.csv", a.ExportHistory)
		v1.DELETE("/history", a.ClearHistory)

		// Alerts
		v1.GET("/alerts/low-stock", a.LowStock)
		v1.GET("/shopping-list", a.ShoppingList)

		// Recipes
		v1.GET("/recipes", a.ListRecipes)
		v1.GET("/recipes/:name", a.GetRecipe)
		v1.POST("/recipes/:name/apply", a.ApplyRecipe)

		// Leftovers and suggestions
		v1.GET("/leftovers", a.ListLeftovers)
		v1.POST("/leftovers/:category/:item", a.MarkLeftover)
		v1.DELETE("/leftovers/:category/:item", a.UnmarkLeftover)
		v1.POST("/suggestions/recipe", a.SuggestRecipe)
		v1.POST("/suggestions/leftovers", a.SuggestLeftovers)

		// Status
		v1.GET("/metrics", a.GetMetrics)
	}
}

// Health reports liveness and whether saves are currently failing
func (a *InventoryAPI) Health(c *gin.Context) {
	status := "ok"
	degraded := a.inventory.Degraded()
	if degraded {
		status = "degraded"
	}
	body := gin.H{"status": status, "degraded": degraded}
	if last, ok := a.monitor.GetMetric("last_change"); ok {
		body["last_change"] = last
	}
	c.JSON(http.StatusOK, body)
}

// GetMetrics returns the monitor's JSON metrics
func (a *InventoryAPI) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.monitor.GetMetrics())
}

func (a *InventoryAPI) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		a.logger.Debug("api: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case inventory.IsValidation(err), errors.Is(err, advisor.ErrNoIngredients):
		return http.StatusBadRequest
	case inventory.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *InventoryAPI) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("api: request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// withWarning adds a "warning" field when a mutation was kept in memory but
// could not be saved.
func withWarning(body gin.H, err error) gin.H {
	if inventory.IsDegraded(err) {
		body["warning"] = "changes are kept in memory but could not be saved: " + err.Error()
	}
	return body
}
