package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dialcart_backend/platform/ai/gemini"
	"dialcart_backend/platform/logger"
)

// LLMCallLog persists one row per model invocation for pipeline observability.
// It implements gemini.Recorder; failures are logged and swallowed so auditing
// never fails a pipeline stage.
type LLMCallLog struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewLLMCallLog creates the audit recorder.
func NewLLMCallLog(pool *pgxpool.Pool, log *logger.Logger) *LLMCallLog {
	return &LLMCallLog{pool: pool, log: log}
}

// RecordLLMCall writes one audit row. The ticket id is taken from the request
// context when the calling stage attached one.
func (l *LLMCallLog) RecordLLMCall(ctx context.Context, rec gemini.CallRecord) {
	var ticketID *uuid.UUID
	if raw, ok := ctx.Value(logger.TicketIDKey).(string); ok && raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			ticketID = &id
		}
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO llm_calls
			(ticket_id, stage, model, grounded, prompt_chars, response_chars, latency_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, ticketID, rec.Stage, rec.Model, rec.Grounded, rec.PromptChars,
		rec.ResponseChars, rec.LatencyMs, rec.Error)
	if err != nil {
		l.log.DatabaseError("record llm call", err)
	}
}

// Compile-time check that LLMCallLog implements gemini.Recorder
var _ gemini.Recorder = (*LLMCallLog)(nil)
