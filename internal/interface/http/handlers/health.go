// Package handlers holds HTTP concerns that sit below routing: health
// aggregation and the admin-token middleware.
package handlers

import (
	"context"
	"sync"
	"time"
)

// checkTimeout bounds each probe so one hung dependency cannot stall
// the whole /health response.
const checkTimeout = 5 * time.Second

// HealthCheckFunc probes one dependency; nil means healthy.
type HealthCheckFunc func(ctx context.Context) error

// HealthChecker aggregates named probes into a single status.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
	AddCheck(name string, check HealthCheckFunc)
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult reports one probe.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// CompositeHealthChecker runs every registered probe (PostgreSQL pool,
// Redis ping) and is healthy only when all of them are.
type CompositeHealthChecker struct {
	version string
	since   time.Time

	mu     sync.RWMutex
	probes map[string]HealthCheckFunc
}

// NewCompositeHealthChecker starts with no probes registered.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		version: version,
		since:   time.Now(),
		probes:  make(map[string]HealthCheckFunc),
	}
}

// AddCheck registers a probe under a name, replacing any previous one.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = check
}

// Check runs all probes sequentially and aggregates the results.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	probes := make(map[string]HealthCheckFunc, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Checks:    make(map[string]CheckResult, len(probes)),
		Uptime:    time.Since(c.since).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	for name, probe := range probes {
		result := c.runProbe(ctx, probe)
		if !result.Healthy {
			status.Healthy = false
		}
		status.Checks[name] = result
	}
	return status
}

func (c *CompositeHealthChecker) runProbe(ctx context.Context, probe HealthCheckFunc) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := probe(probeCtx)

	result := CheckResult{
		Healthy:  err == nil,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		result.Message = err.Error()
	}
	return result
}
