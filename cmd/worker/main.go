// Command worker runs the background task consumer on its own: the ticket
// pipeline, the web-deal branch, and the call timeout watchdogs. Deployments
// that need to scale call fan-out separately from the HTTP surface run this
// alongside the api binary; the embedded worker in api covers the rest.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialcart_backend/internal/logistics"
	"dialcart_backend/internal/scheduler"
	"dialcart_backend/internal/ticket"
	ticketrepo "dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/voice"
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
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The api binary owns migrations; the worker only needs the pool.
	dbpool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbpool.Close()

	bus := events.NewInMemoryBus(log)
	val := validator.New()

	llm, err := gemini.NewClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init gemini client: %w", err)
	}
	llm.SetRecorder(ticketrepo.NewLLMCallLog(dbpool, log))

	tasks, err := scheduler.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("init task scheduler: %w", err)
	}
	defer tasks.Close()

	booker := logistics.NewBooker(
		logistics.NewClient(cfg, log),
		logistics.NewGeocoder(cfg, log),
		logistics.NewRepository(dbpool),
		cfg.GetMaxDeliveryRetries(),
		log,
	)

	ticketModule := ticket.NewModule(dbpool, llm, voice.NewClient(cfg, log), booker, tasks, bus, cfg, val, log)

	worker, err := scheduler.NewWorker(cfg, ticketModule.Service(), ticketModule.Service(), ticketModule.Service(), log)
	if err != nil {
		return fmt.Errorf("init scheduler worker: %w", err)
	}

	worker.Run(ctx)

	// Give in-flight event handlers a moment to finish after shutdown.
	time.Sleep(time.Second)
	log.Info("worker stopped cleanly")
	return nil
}
