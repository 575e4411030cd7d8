package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a database connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EndpointReporter reports per-endpoint RPC health.
type EndpointReporter interface {
	Health() map[string]bool
}

// RefreshReporter reports the scheduled balance refresh.
type RefreshReporter interface {
	LastResult() (at time.Time, err error, ok bool)
	ExpectedInterval() time.Duration
}

// LoopProbe returns nil when the event loop accepted and ran a no-op.
type LoopProbe func(ctx context.Context) error

// Checker performs health checks on application dependencies. Every
// dependency is optional; unset ones are not reported.
type Checker struct {
	db        Pinger
	endpoints EndpointReporter
	refresher RefreshReporter
	loop      LoopProbe
	now       func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

func WithDatabase(p Pinger) Option {
	return func(c *Checker) { c.db = p }
}

func WithEndpoints(e EndpointReporter) Option {
	return func(c *Checker) { c.endpoints = e }
}

func WithRefresher(r RefreshReporter) Option {
	return func(c *Checker) { c.refresher = r }
}

func WithLoop(p LoopProbe) Option {
	return func(c *Checker) { c.loop = p }
}

// NewChecker creates a new health checker
func NewChecker(opts ...Option) *Checker {
	c := &Checker{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

var startTime = time.Now()

// Check performs all health checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]CheckDetail)
	overall := StatusOK

	merge := func(name string, d CheckDetail, fatal bool) {
		checks[name] = d
		switch {
		case d.Status == StatusError && fatal:
			overall = StatusError
		case d.Status != StatusOK && overall == StatusOK:
			overall = StatusDegraded
		}
	}

	if c.loop != nil {
		merge("event_loop", c.checkLoop(ctx), true)
	}
	if c.endpoints != nil {
		merge("rpc_endpoints", c.checkRPC(), true)
	}
	// the journal is an audit trail; losing it does not stop transfers
	if c.db != nil {
		merge("journal", c.checkDatabase(ctx), false)
	}
	if c.refresher != nil {
		merge("balance_refresh", c.checkRefresher(), false)
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: c.now(),
		Checks:    checks,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

func (c *Checker) checkLoop(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.loop(ctx); err != nil {
		slog.Error("Health check: event loop unresponsive", "error", err)
		return CheckDetail{Status: StatusError, Message: "event loop unresponsive: " + err.Error()}
	}
	return CheckDetail{Status: StatusOK, Message: "event loop responsive"}
}

// checkDatabase verifies PostgreSQL connectivity
func (c *Checker) checkDatabase(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		slog.Error("Health check: database ping failed", "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "database unreachable: " + err.Error(),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: "database connection healthy",
	}
}

// checkRPC verifies that at least one RPC endpoint is available
func (c *Checker) checkRPC() CheckDetail {
	status := c.endpoints.Health()
	healthy := 0
	for _, ok := range status {
		if ok {
			healthy++
		}
	}

	switch {
	case len(status) == 0 || healthy == 0:
		slog.Error("Health check: no healthy RPC endpoints")
		return CheckDetail{Status: StatusError, Message: "no healthy RPC endpoints available"}
	case healthy == len(status):
		return CheckDetail{Status: StatusOK, Message: "all RPC endpoints healthy"}
	default:
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d/%d RPC endpoints healthy", healthy, len(status)),
		}
	}
}

// checkRefresher verifies the refresh is executing at expected intervals
func (c *Checker) checkRefresher() CheckDetail {
	at, err, ok := c.refresher.LastResult()
	if !ok {
		return CheckDetail{Status: StatusOK, Message: "refresh not yet executed (startup)"}
	}
	if err != nil {
		return CheckDetail{Status: StatusDegraded, Message: "last refresh failed: " + err.Error()}
	}

	interval := c.refresher.ExpectedInterval()
	since := c.now().Sub(at)
	if since > 2*interval {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no refresh in %s (expected every %s)", since.Round(time.Second), interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last refreshed %s ago", since.Round(time.Second)),
	}
}

// Handler returns an http.HandlerFunc for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Check(r.Context())

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
