// Package scheduler provides the asynq-backed background task queue: one
// pipeline task per ticket, an independent web-deals task, and per-call
// timeout watchdogs.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"dialcart_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// TaskScheduler is the enqueue surface the ticket service depends on.
type TaskScheduler interface {
	EnqueuePipeline(ctx context.Context, ticketID string) error
	EnqueueWebDeals(ctx context.Context, ticketID string) error
	ScheduleCallTimeout(ctx context.Context, ticketID, storeCallID string, after time.Duration) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePipeline schedules the orchestration pipeline for a ticket.
// No retry: a half-run pipeline has already placed phone calls, so replaying
// it would dial stores twice. Failures inside the pipeline mark the ticket
// failed instead.
func (c *Client) EnqueuePipeline(ctx context.Context, ticketID string) error {
	task, err := NewTicketPipelineTask(TicketPipelinePayload{TicketID: ticketID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(0))
	return err
}

// EnqueueWebDeals schedules the parallel web-deal search branch.
func (c *Client) EnqueueWebDeals(ctx context.Context, ticketID string) error {
	task, err := NewTicketWebDealsTask(TicketWebDealsPayload{TicketID: ticketID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(0))
	return err
}

// ScheduleCallTimeout schedules the watchdog that forces a stuck call to
// failed after the per-call deadline. The handler is a guarded no-op for
// calls already settled, so retries are safe.
func (c *Client) ScheduleCallTimeout(ctx context.Context, ticketID, storeCallID string, after time.Duration) error {
	task, err := NewStoreCallTimeoutTask(StoreCallTimeoutPayload{
		TicketID:    ticketID,
		StoreCallID: storeCallID,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.ProcessIn(after), asynq.MaxRetry(3))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
