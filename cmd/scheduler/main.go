// Command scheduler runs the Scheduler process described in spec.md §4.1:
// scan for due leads and enqueue one outbox row per lead. Grounded on
// join-service's api/cmd/main.go for the bootstrap/shutdown shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dripwave/sequencer/internal/config"
	"github.com/dripwave/sequencer/internal/httpserver"
	"github.com/dripwave/sequencer/internal/logger"
	"github.com/dripwave/sequencer/internal/scheduler"
	"github.com/dripwave/sequencer/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Named("scheduler")

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	repo := postgres.NewSchedulerRepo(pool)
	sched := scheduler.New(repo, cfg.SchedulerBatchSize, cfg.SchedulerTickInterval, log)

	httpHandler := httpserver.New(pool, cfg.EnableMetrics, nil)
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(rootCtx)
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	// Let the loop's in-flight tick (if any) finish before tearing anything
	// down, bounded by ShutdownGrace so a stuck DB call can't hang forever.
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(cfg.ShutdownGrace):
		log.Warn().Msg("scheduler loop did not stop within shutdown grace period")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
