package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps a small set of service metrics for the JSON status endpoint
type Monitor struct {
	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}
}

// RecordMetric records a metric value, such as a startup fact
func (m *Monitor) RecordMetric(name string, value interface{}) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

// GetMetric returns a specific metric value
func (m *Monitor) GetMetric(name string) (interface{}, bool) {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()
	value, exists := m.metrics[name]
	return value, exists
}

// GetMetrics returns all current metrics
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	metrics := make(map[string]interface{}, len(m.metrics)+1)
	for k, v := range m.metrics {
		metrics[k] = v
	}
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return metrics
}

// RecordInventoryChange records the state left behind by a committed change
func (m *Monitor) RecordInventoryChange(action string, items, lowStock int, degraded bool) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	m.metrics["inventory_items"] = items
	m.metrics["low_stock_items"] = lowStock
	m.metrics["degraded"] = degraded
	m.metrics["last_action"] = action
	m.metrics["last_change"] = time.Now().UTC().Format(time.RFC3339)
}
