// Package scheduler refreshes wallet balances on a clock-aligned schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// ErrNoInterval is returned by NewRefresher for an empty interval.
var ErrNoInterval = errors.New("refresh interval is empty")

// RefreshFunc reloads balances.
type RefreshFunc func(ctx context.Context) error

// Config holds refresher configuration
type Config struct {
	Interval       string         // Duration (e.g., "30s") or cron expression (e.g., "*/5 * * * *")
	Timezone       *time.Location // Timezone for cron expressions (default: UTC)
	RunImmediately bool           // Refresh once on Start
	Clock          clockwork.Clock
	Logger         *slog.Logger
}

// Refresher runs a RefreshFunc with gocron and remembers the outcome of
// the last run for health reporting.
type Refresher struct {
	gocronScheduler gocron.Scheduler
	job             gocron.Job
	interval        string
	timezone        *time.Location
	runImmediately  bool
	clock           clockwork.Clock
	logger          *slog.Logger

	mu      sync.RWMutex
	lastRun time.Time
	lastErr error
	runs    int
}

// NewRefresher creates a refresher. It does not run until Start.
func NewRefresher(ctx context.Context, cfg Config, fn RefreshFunc) (*Refresher, error) {
	if cfg.Interval == "" {
		return nil, ErrNoInterval
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Refresher{
		interval:       cfg.Interval,
		timezone:       cfg.Timezone,
		runImmediately: cfg.RunImmediately,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}

	cronExpr, withSeconds, err := toCron(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Timezone),
		gocron.WithClock(cfg.Clock),
		gocron.WithLogger(newGocronLoggerAdapter(cfg.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	r.gocronScheduler = s

	r.logger.Info("Balance refresh scheduled", "schedule", DescribeSchedule(cfg.Interval, cfg.Timezone))

	job, err := s.NewJob(
		gocron.CronJob(cronExpr, withSeconds),
		gocron.NewTask(func() { r.run(ctx, fn) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}
	r.job = job

	return r, nil
}

func (r *Refresher) run(ctx context.Context, fn RefreshFunc) {
	err := fn(ctx)
	if err != nil {
		r.logger.Error("Scheduled balance refresh failed", "error", err)
	}

	r.mu.Lock()
	r.lastRun = r.clock.Now()
	r.lastErr = err
	r.runs++
	r.mu.Unlock()
}

// Start begins the scheduler
func (r *Refresher) Start() error {
	r.gocronScheduler.Start()

	if r.runImmediately {
		if err := r.job.RunNow(); err != nil {
			r.logger.Error("Immediate refresh failed", "error", err)
		}
	}

	if next, err := r.NextRun(); err == nil {
		r.logger.Info("Refresher started", "next_run", next.Format(time.RFC3339), "timezone", r.timezone.String())
	} else {
		r.logger.Info("Refresher started")
	}
	return nil
}

// Stop stops the scheduler gracefully
func (r *Refresher) Stop() error {
	r.logger.Info("Stopping refresher")
	return r.gocronScheduler.Shutdown()
}

// NextRun returns the next scheduled run time
func (r *Refresher) NextRun() (time.Time, error) {
	next, err := r.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return next, nil
}

// LastResult reports when the last refresh finished and its error. ok is
// false before the first run.
func (r *Refresher) LastResult() (at time.Time, err error, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun, r.lastErr, r.runs > 0
}

// Runs counts completed refreshes.
func (r *Refresher) Runs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runs
}

// ExpectedInterval is the nominal gap between runs. Irregular cron
// expressions report a conservative five minutes.
func (r *Refresher) ExpectedInterval() time.Duration {
	if d, err := time.ParseDuration(r.interval); err == nil {
		return d
	}
	return 5 * time.Minute
}

// gocronLoggerAdapter adapts slog.Logger to gocron.Logger interface
type gocronLoggerAdapter struct {
	logger *slog.Logger
}

func newGocronLoggerAdapter(logger *slog.Logger) gocron.Logger {
	return &gocronLoggerAdapter{logger: logger}
}

func (a *gocronLoggerAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

func (a *gocronLoggerAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

func (a *gocronLoggerAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

func (a *gocronLoggerAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}
