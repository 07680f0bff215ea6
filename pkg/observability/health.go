package observability

import (
	"context"
	"sync"
	"time"
)

// HealthStatus is the outcome of a health probe.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck probes a single dependency.
type HealthCheck func(ctx context.Context) error

// CheckResult is the result of one probe.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// HealthReport aggregates all probe results.
type HealthReport struct {
	Status HealthStatus  `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// HealthChecker runs registered probes and aggregates the results.
type HealthChecker struct {
	mu       sync.RWMutex
	checks   map[string]HealthCheck
	optional map[string]bool
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:   make(map[string]HealthCheck),
		optional: make(map[string]bool),
	}
}

// Register adds a required probe. Failure makes the report unhealthy.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RegisterOptional adds a probe whose failure only degrades the report.
func (h *HealthChecker) RegisterOptional(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	h.optional[name] = true
}

// Run executes all probes and aggregates the worst status.
func (h *HealthChecker) Run(ctx context.Context) HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := HealthReport{Status: HealthStatusHealthy}
	for name, check := range h.checks {
		start := time.Now()
		err := check(ctx)
		result := CheckResult{
			Name:     name,
			Status:   HealthStatusHealthy,
			Duration: time.Since(start),
		}
		if err != nil {
			result.Error = err.Error()
			if h.optional[name] {
				result.Status = HealthStatusDegraded
				if report.Status == HealthStatusHealthy {
					report.Status = HealthStatusDegraded
				}
			} else {
				result.Status = HealthStatusUnhealthy
				report.Status = HealthStatusUnhealthy
			}
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}
