// Command api runs the HTTP server: the ticket REST surface, provider
// webhooks, and an embedded background worker for the orchestration pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialcart_backend/internal/dedupe"
	apphttp "dialcart_backend/internal/http"
	"dialcart_backend/internal/http/router"
	"dialcart_backend/internal/logistics"
	"dialcart_backend/internal/scheduler"
	"dialcart_backend/internal/ticket"
	ticketrepo "dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/voice"
	"dialcart_backend/migrations"
	"dialcart_backend/platform/ai/gemini"
	"dialcart_backend/platform/config"
	"dialcart_backend/platform/db"
	"dialcart_backend/platform/events"
	"dialcart_backend/platform/logger"
	"dialcart_backend/platform/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	val := validator.New()

	llm, err := gemini.NewClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init gemini client: %w", err)
	}
	llm.SetRecorder(ticketrepo.NewLLMCallLog(pool, log))

	dedupeStore, err := dedupe.New(cfg.GetRedisURL())
	if err != nil {
		return fmt.Errorf("init dedupe store: %w", err)
	}
	defer dedupeStore.Close()

	tasks, err := scheduler.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("init task scheduler: %w", err)
	}
	defer tasks.Close()

	voiceClient := voice.NewClient(cfg, log)

	logisticsRepo := logistics.NewRepository(pool)
	booker := logistics.NewBooker(
		logistics.NewClient(cfg, log),
		logistics.NewGeocoder(cfg, log),
		logisticsRepo,
		cfg.GetMaxDeliveryRetries(),
		log,
	)

	ticketModule := ticket.NewModule(pool, llm, voiceClient, booker, tasks, bus, cfg, val, log)
	voiceModule := voice.NewModule(bus, dedupeStore, cfg.GetVoiceWebhookSecret(), log)
	logisticsModule := logistics.NewModule(logisticsRepo, booker, ticketModule.Service(), bus, dedupeStore, log)

	worker, err := scheduler.NewWorker(cfg, ticketModule.Service(), ticketModule.Service(), ticketModule.Service(), log)
	if err != nil {
		return fmt.Errorf("init scheduler worker: %w", err)
	}
	go worker.Run(ctx)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: bus,
		Modules: []apphttp.Module{
			ticketModule,
			voiceModule,
			logisticsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	log.Info("api stopped cleanly")
	return nil
}

// withRetry runs fn up to attempts times with quadratic backoff. Used for
// startup dependencies that may come up slightly after the service does.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt*attempt) * baseDelay
		log.Warn("startup dependency not ready, retrying",
			"dependency", name, "attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
