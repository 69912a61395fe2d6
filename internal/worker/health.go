package worker

import (
	"time"
)

// HealthStatus represents the health status of the pool.
type HealthStatus string

const (
	// HealthStatusHealthy means the pool is operating normally.
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusDegraded means the pool has some unhealthy workers.
	HealthStatusDegraded HealthStatus = "degraded"

	// HealthStatusUnhealthy means the pool is not functioning properly.
	HealthStatusUnhealthy HealthStatus = "unhealthy"

	// degradedThreshold is the minimum healthy ratio to be considered degraded (vs unhealthy).
	degradedThreshold = 0.5
)

// HealthCheck represents a health check result.
type HealthCheck struct {
	Status           HealthStatus `json:"status"`
	Timestamp        time.Time    `json:"timestamp"`
	PoolState        string       `json:"pool_state"`
	TotalWorkers     int          `json:"total_workers"`
	HealthyWorkers   int          `json:"healthy_workers"`
	UnhealthyWorkers int          `json:"unhealthy_workers"`
	BusyWorkers      int          `json:"busy_workers"`
	IdleWorkers      int          `json:"idle_workers"`
}

// Health evaluates the current health of the pool.
func (p *Pool) Health() HealthCheck {
	stats := p.Stats()

	healthy := 0
	for _, ws := range stats.Workers {
		if ws.IsHealthy(p.config.JobTimeout) {
			healthy++
		}
	}

	check := HealthCheck{
		Timestamp:        time.Now(),
		PoolState:        stats.State.String(),
		TotalWorkers:     stats.PoolSize,
		HealthyWorkers:   healthy,
		UnhealthyWorkers: stats.PoolSize - healthy,
		BusyWorkers:      stats.BusyWorkers,
		IdleWorkers:      stats.IdleWorkers,
	}

	switch {
	case stats.State != PoolStateRunning:
		check.Status = HealthStatusUnhealthy
	case healthy == stats.PoolSize:
		check.Status = HealthStatusHealthy
	case float64(healthy)/float64(stats.PoolSize) >= degradedThreshold:
		check.Status = HealthStatusDegraded
	default:
		check.Status = HealthStatusUnhealthy
	}

	return check
}
