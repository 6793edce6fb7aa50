package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mise/internal/models"
)

// Collector owns a private prometheus registry with the service metrics.
type Collector struct {
	registry            *prometheus.Registry
	mutations           *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	advisorRequests     *prometheus.CounterVec
	lowStockItems       prometheus.Gauge
	inventoryItems      prometheus.Gauge
}

// NewCollector creates a collector with all metrics registered
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mise_inventory_mutations_total",
				Help: "Inventory mutations by history action",
			},
			[]string{"action"},
		),
		persistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mise_persistence_failures_total",
				Help: "Failed saves by persisted resource",
			},
			[]string{"resource"},
		),
		advisorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mise_advisor_requests_total",
				Help: "Recipe advisor requests by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		lowStockItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mise_low_stock_items",
			Help: "Items currently below the low-stock threshold",
		}),
		inventoryItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mise_inventory_items",
			Help: "Items currently stocked",
		}),
	}

	registry.MustRegister(
		c.mutations,
		c.persistenceFailures,
		c.advisorRequests,
		c.lowStockItems,
		c.inventoryItems,
		collectors.NewGoCollector(),
	)
	return c
}

// RecordMutation counts one committed inventory mutation
func (c *Collector) RecordMutation(action models.Action) {
	c.mutations.WithLabelValues(string(action)).Inc()
}

// RecordPersistenceFailure counts one failed save of resource
func (c *Collector) RecordPersistenceFailure(resource string) {
	c.persistenceFailures.WithLabelValues(resource).Inc()
}

// RecordAdvisorRequest counts one advisor call
func (c *Collector) RecordAdvisorRequest(backend, outcome string) {
	c.advisorRequests.WithLabelValues(backend, outcome).Inc()
}

// SetInventoryLevels updates the stock gauges
func (c *Collector) SetInventoryLevels(items, lowStock int) {
	c.inventoryItems.Set(float64(items))
	c.lowStockItems.Set(float64(lowStock))
}

// Handler serves the registry in the prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
