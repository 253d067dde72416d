package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultCheckTimeout = 5 * time.Second

	// StatusHealthy indicates all checks passed.
	StatusHealthy = "healthy"
	// StatusUnhealthy indicates one or more checks failed.
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Checks maps dependency names to their readiness checks.
type Checks map[string]CheckFunc

// HealthResponse is the readiness payload.
type HealthResponse struct {
	Checks map[string]CheckResult `json:"checks,omitempty"`
	Status string                 `json:"status"`
}

// CheckResult is the status of one check.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// runChecks executes all checks concurrently under one timeout.
func runChecks(ctx context.Context, checks Checks, timeout time.Duration, log *slog.Logger) HealthResponse {
	if len(checks) == 0 {
		return HealthResponse{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		g    errgroup.Group
		resp = HealthResponse{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(checks))}
	)

	for name, check := range checks {
		g.Go(func() error {
			res := CheckResult{Status: StatusHealthy}
			if err := check(ctx); err != nil {
				res = CheckResult{Status: StatusUnhealthy, Error: err.Error()}
				log.WarnContext(ctx, "readiness check failed",
					slog.String("check", name),
					slog.String("error", err.Error()),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = res
			if res.Status == StatusUnhealthy {
				resp.Status = StatusUnhealthy
			}
			return nil
		})
	}
	_ = g.Wait()

	return resp
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: StatusHealthy})
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	resp := runChecks(r.Context(), s.checks, s.checkTimeout, s.logger)

	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
