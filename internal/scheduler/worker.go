package scheduler

import (
	"context"
	"fmt"

	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PipelineRunner executes the ticket orchestration pipeline.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, ticketID uuid.UUID) error
}

// WebDealRunner executes the web-deal search branch for a ticket.
type WebDealRunner interface {
	RunWebDeals(ctx context.Context, ticketID uuid.UUID) error
}

// CallTimeoutEnforcer forces a stuck store call to failed after its deadline.
type CallTimeoutEnforcer interface {
	EnforceCallTimeout(ctx context.Context, ticketID, storeCallID uuid.UUID) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	pipeline PipelineRunner
	webdeals WebDealRunner
	timeouts CallTimeoutEnforcer
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pipeline PipelineRunner, webdeals WebDealRunner, timeouts CallTimeoutEnforcer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		pipeline: pipeline,
		webdeals: webdeals,
		timeouts: timeouts,
		log:      log,
	}

	mux.HandleFunc(TaskTicketPipeline, w.handleTicketPipeline)
	mux.HandleFunc(TaskTicketWebDeals, w.handleTicketWebDeals)
	mux.HandleFunc(TaskStoreCallTimeout, w.handleStoreCallTimeout)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleTicketPipeline(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTicketPipelinePayload(task)
	if err != nil {
		return err
	}

	ticketID, err := uuid.Parse(payload.TicketID)
	if err != nil {
		return err
	}

	return w.pipeline.RunPipeline(ctx, ticketID)
}

func (w *Worker) handleTicketWebDeals(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTicketWebDealsPayload(task)
	if err != nil {
		return err
	}

	ticketID, err := uuid.Parse(payload.TicketID)
	if err != nil {
		return err
	}

	return w.webdeals.RunWebDeals(ctx, ticketID)
}

func (w *Worker) handleStoreCallTimeout(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseStoreCallTimeoutPayload(task)
	if err != nil {
		return err
	}

	ticketID, err := uuid.Parse(payload.TicketID)
	if err != nil {
		return err
	}

	storeCallID, err := uuid.Parse(payload.StoreCallID)
	if err != nil {
		return err
	}

	return w.timeouts.EnforceCallTimeout(ctx, ticketID, storeCallID)
}
