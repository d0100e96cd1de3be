// Command worker runs the Worker process described in spec.md §4.3:
// consume SEQUENCE_TOPIC, render, send, advance state. Grounded on
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

	"github.com/dripwave/sequencer/internal/broker/rabbitmq"
	"github.com/dripwave/sequencer/internal/circuitbreaker"
	"github.com/dripwave/sequencer/internal/config"
	"github.com/dripwave/sequencer/internal/httpserver"
	"github.com/dripwave/sequencer/internal/logger"
	"github.com/dripwave/sequencer/internal/provider"
	"github.com/dripwave/sequencer/internal/store/postgres"
	"github.com/dripwave/sequencer/internal/store/rediscache"
	"github.com/dripwave/sequencer/internal/template"
	"github.com/dripwave/sequencer/internal/worker"
)

const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireRabbitMQ(); err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Named("worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	catalog := postgres.NewCatalogRepo(pool)
	workerDB := postgres.NewWorkerRepo(pool)

	var cache *rediscache.Cache
	if cfg.RedisEnabled {
		cache, err = rediscache.New(cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis cache unavailable; continuing without it")
			cache = nil
		} else {
			log.Info().Msg("redis cache connected")
		}
	}

	processor := template.NewProcessor(cfg.MainAppBaseURL)
	if cfg.GeminiAPIKey != "" {
		opener, err := template.NewAIOpener(rootCtx, cfg.GeminiAPIKey)
		if err != nil {
			log.Warn().Err(err).Msg("aiOpener unavailable; falling back to default opener")
			processor.RegisterSpecial("aiopener", func(ctx context.Context, leadID string) (string, error) {
				return template.FallbackOpener, nil
			})
		} else {
			processor.RegisterSpecial("aiopener", func(ctx context.Context, leadID string) (string, error) {
				lead, err := catalog.LeadByID(ctx, leadID)
				if err != nil || lead == nil {
					return template.FallbackOpener, fmt.Errorf("load lead for aiOpener: %w", err)
				}
				leadContext := fmt.Sprintf("Name: %s, Company: %s, Title: %s, Industry: %s",
					lead.FullName(), lead.CompanyName, lead.JobTitle, lead.Industry)
				return opener.Generate(ctx, leadContext)
			})
		}
	}

	var emailProvider provider.Provider
	if cfg.UseMockProvider() {
		emailProvider = provider.NewMockProvider()
		log.Info().Msg("using mock email provider")
	} else {
		emailProvider, err = provider.NewSESProvider(rootCtx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.SESFromAddress)
		if err != nil {
			log.Fatal().Err(err).Msg("ses provider create failed")
		}
		log.Info().Msg("using ses email provider")
	}
	emailProvider = provider.WithRetry(emailProvider)

	breaker := circuitbreaker.New(breakerMaxFailures, breakerResetTimeout)

	w := worker.New(catalog, workerDB, cache, processor, emailProvider, breaker, log)

	consumerCfg := rabbitmq.ConsumerConfig{
		URL:        cfg.RabbitMQURL,
		Queue:      "SEQUENCE_TOPIC",
		Prefetch:   cfg.WorkerPrefetch,
		ConsumeTag: cfg.WorkerConsumerTag,
		MaxRetries: cfg.WorkerMaxRetries,
	}
	consumer := rabbitmq.NewConsumer(consumerCfg, w.Handle, log)

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
		if err := consumer.Run(rootCtx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("worker crashed")
	}

	// Stop consuming new deliveries and let an in-flight handleDelivery
	// finish (spec.md §5), bounded by ShutdownGrace so a wedged send can't
	// block the process forever.
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(cfg.ShutdownGrace):
		log.Warn().Msg("consumer did not stop within shutdown grace period")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
