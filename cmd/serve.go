package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matrixise/chainbridge/internal/api"
	"github.com/matrixise/chainbridge/internal/config"
	"github.com/matrixise/chainbridge/internal/eventloop"
	"github.com/matrixise/chainbridge/internal/health"
	"github.com/matrixise/chainbridge/internal/logger"
	"github.com/matrixise/chainbridge/internal/metrics"
	"github.com/matrixise/chainbridge/internal/scheduler"
	"github.com/matrixise/chainbridge/internal/session"
	"github.com/matrixise/chainbridge/internal/storage"
)

var (
	refreshInterval string
	noConnect       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a bridge session over HTTP",
	Long: `Run a bridge session on a single event loop and expose it over an
HTTP/JSON API together with /health and /metrics. Transfer events are
journaled to PostgreSQL when DATABASE_URL is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&refreshInterval, "refresh-interval", "", "balance refresh interval - duration (30s, 5m) or cron (\"*/5 * * * *\") - empty refreshes on demand only")
	serveCmd.Flags().BoolVar(&noConnect, "no-connect", false, "do not connect the wallet at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Setup logger (log-level from global flag)
	logger.Setup(logLevel)

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, graceful shutdown", "signal", sig)
		cancel()
	}()

	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}
	if cfg.LogLevel != "" {
		logger.Setup(cfg.LogLevel)
	}

	interval := refreshInterval
	if interval == "" {
		interval = cfg.RefreshInterval
	}
	if err := scheduler.ValidateScheduleInterval(interval); err != nil {
		return fmt.Errorf("invalid --refresh-interval: %w", err)
	}

	opts, err := sessionOptions(cfg)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}
	logTimings(opts.Timings)

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"tokens", opts.Catalog.Len(),
		"oracle", cfg.Oracle.Kind,
		"refresh", scheduler.DescribeSchedule(interval, time.UTC),
	)

	checkerOpts := []health.Option{}

	orc, eth, closeOracle, err := newOracle(ctx, cfg, opts.Catalog)
	if err != nil {
		slog.Error("Failed to create balance oracle", "error", err)
		return err
	}
	defer closeOracle()
	opts.Oracle = orc
	if eth != nil {
		checkerOpts = append(checkerOpts, health.WithEndpoints(eth))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)
	opts.Observers = append(opts.Observers, m.ObserveTransfer)
	opts.WalletObserver = m.ObserveWallet
	opts.RefreshObserver = m.ObserveRefresh

	// The journal is optional: without DATABASE_URL transfers are only logged.
	var journalReader api.EventReader
	if databaseURL != "" {
		if err := storage.RunMigrations(ctx, databaseURL); err != nil {
			slog.Error("Failed to apply migrations", "error", err)
			return err
		}
		store, err := storage.NewStore(ctx, databaseURL)
		if err != nil {
			slog.Error("Failed to connect to PostgreSQL", "error", err)
			return err
		}
		defer store.Close()
		slog.Info("PostgreSQL connection established, journaling transfers")

		journal := storage.NewJournal(store, 1024, storage.WithWallet(cfg.Wallet.Address))
		journalCtx, stopJournal := context.WithCancel(context.Background())
		journalDone := make(chan struct{})
		go func() {
			defer close(journalDone)
			_ = journal.Run(journalCtx)
		}()
		// drain after the loop has stopped emitting
		defer func() {
			stopJournal()
			<-journalDone
		}()

		opts.Observers = append(opts.Observers, journal.Observe)
		checkerOpts = append(checkerOpts, health.WithDatabase(store))
		journalReader = store
	}

	runner := eventloop.NewRunner(nil, slog.Default())
	opts.Scheduler = runner

	sess, err := session.New(opts)
	if err != nil {
		return err
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = runner.Run(ctx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	checkerOpts = append(checkerOpts, health.WithLoop(func(ctx context.Context) error {
		return runner.Do(ctx, func() {})
	}))

	if !noConnect {
		err := runner.Do(ctx, func() {
			conn := sess.Connect(ctx)
			if conn.Connected {
				slog.Info("Wallet connected", "address", conn.ShortAddress(), "network", conn.Network)
			} else {
				slog.Warn("Wallet not connected at startup", "error", sess.WalletError())
			}
		})
		if err != nil {
			return err
		}
	}

	if interval != "" {
		refresher, err := scheduler.NewRefresher(ctx, scheduler.Config{
			Interval: interval,
			Timezone: time.UTC,
			Logger:   slog.Default(),
		}, func(jobCtx context.Context) error {
			var refreshErr error
			if err := runner.Do(jobCtx, func() {
				_, refreshErr = sess.RefreshBalances(jobCtx)
			}); err != nil {
				return err
			}
			return refreshErr
		})
		if err != nil {
			slog.Error("Failed to create refresher", "error", err)
			return fmt.Errorf("refresher creation failed: %w", err)
		}
		defer func() { _ = refresher.Stop() }()

		if err := refresher.Start(); err != nil {
			return fmt.Errorf("refresher start failed: %w", err)
		}
		checkerOpts = append(checkerOpts, health.WithRefresher(refresher))
	}

	checker := health.NewChecker(checkerOpts...)

	server := api.NewServer(runner, sess, api.Config{
		Port:           cfg.HTTPPort,
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerMinute:  cfg.RatePerMinute,
		Health:         checker.Handler(),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Journal:        journalReader,
		Logger:         slog.Default(),
	})
	server.Start()

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Bridge session serving", "port", cfg.HTTPPort)

	<-ctx.Done()
	slog.Info("Shutdown requested, stopping bridge")
	return nil
}
