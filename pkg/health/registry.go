package health

import (
	"context"
	"time"
)

// Registry aggregates Checkers for the /healthz endpoint. A relay has one
// dependency worth checking at liveness time (the store); Registry exists
// so httpapi doesn't need to know that, and so more checks can be added
// without touching the handler.
//
// A single failed probe does not flip /healthz unhealthy: status tracks
// consecutive failures against config.Retries the same way a container
// health check tolerates a blip, and masks checks entirely during
// config.StartPeriod right after the registry is created.
type Registry struct {
	checkers []Checker
	config   Config
	status   *Status
}

// NewRegistry constructs a Registry over the given checkers, using
// DefaultConfig for the consecutive-failure threshold and start period.
func NewRegistry(checkers ...Checker) *Registry {
	return &Registry{
		checkers: checkers,
		config:   DefaultConfig(),
		status:   NewStatus(),
	}
}

// Check runs the registered Checkers in order and stops at the first
// unhealthy Result; later checkers are not run in that case. The registry's own Healthy verdict only flips once
// config.Retries consecutive checks have failed, and is held healthy
// during the start period.
func (r *Registry) Check(ctx context.Context) Result {
	result := Result{Healthy: true, Message: "ok", CheckedAt: time.Now()}
	for _, c := range r.checkers {
		if res := c.Check(ctx); !res.Healthy {
			result = res
			break
		}
	}

	r.status.Update(result, r.config)
	if r.status.InStartPeriod(r.config) {
		return Result{Healthy: true, Message: "starting", CheckedAt: result.CheckedAt}
	}
	return Result{Healthy: r.status.Healthy, Message: result.Message, CheckedAt: result.CheckedAt, Duration: result.Duration}
}
