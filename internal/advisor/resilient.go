package advisor

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Request outcomes reported to Metrics
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeInvalid  = "invalid"
	OutcomeFallback = "fallback"
)

// Metrics counts advisor requests.
type Metrics interface {
	RecordAdvisorRequest(backend, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAdvisorRequest(string, string) {}

// Option configures a Resilient advisor.
type Option func(*Resilient)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resilient) { r.logger = l }
}

// WithMetrics reports every request outcome to m.
func WithMetrics(m Metrics) Option {
	return func(r *Resilient) { r.metrics = m }
}

// WithTimeout bounds each call to the primary backend.
func WithTimeout(d time.Duration) Option {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Resilient calls a primary backend under a timeout and answers from the
// fallback generator whenever the primary fails, times out or returns an
// unusable reply. It only returns an error when the request itself is empty.
type Resilient struct {
	primary  Advisor
	fallback *Fallback
	timeout  time.Duration
	logger   *slog.Logger
	metrics  Metrics
}

// NewResilient wraps primary. A nil primary always uses the fallback.
func NewResilient(primary Advisor, fallback *Fallback, opts ...Option) *Resilient {
	r := &Resilient{
		primary:  primary,
		fallback: fallback,
		timeout:  20 * time.Second,
		logger:   slog.Default(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the primary backend name
func (r *Resilient) Name() string {
	if r.primary == nil {
		return r.fallback.Name()
	}
	return r.primary.Name()
}

// Suggest implements Advisor
func (r *Resilient) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	req.Ingredients = nonEmpty(req.Ingredients)
	if len(req.Ingredients) == 0 {
		return nil, ErrNoIngredients
	}
	if req.Inventory != nil {
		req.Inventory = req.Inventory.Clone()
	}

	if r.primary == nil {
		r.metrics.RecordAdvisorRequest(SourceFallback, OutcomeFallback)
		return r.fallback.Suggest(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	s, err := r.primary.Suggest(callCtx, req)
	if err == nil {
		r.metrics.RecordAdvisorRequest(r.primary.Name(), OutcomeOK)
		r.logger.Debug("advisor: suggestion ready", "backend", r.primary.Name(), "took", time.Since(start))
		return s, nil
	}

	outcome := OutcomeError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		outcome = OutcomeTimeout
	case errors.Is(err, ErrInvalidResponse):
		outcome = OutcomeInvalid
	}
	r.metrics.RecordAdvisorRequest(r.primary.Name(), outcome)
	r.logger.Warn("advisor: using fallback suggestion",
		"backend", r.primary.Name(),
		"outcome", outcome,
		"error", err,
	)
	return r.fallback.Suggest(ctx, req)
}
