package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dialcart_backend/internal/webdeals"
)

// SaveWebDeals attaches the web-deal result to a ticket. One row per ticket;
// a rerun keeps the first attachment.
func (r *Repository) SaveWebDeals(ctx context.Context, ticketID uuid.UUID, result *webdeals.Result) error {
	deals, err := json.Marshal(result.Deals)
	if err != nil {
		return err
	}

	var best []byte
	if result.BestDeal != nil {
		best, err = json.Marshal(result.BestDeal)
		if err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO ticket_web_deals (ticket_id, deals, search_summary, best_deal, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticket_id) DO NOTHING
	`, ticketID, deals, result.SearchSummary, best, result.Status)
	return err
}

// GetWebDeals retrieves the web-deal result for a ticket. nil when the branch
// produced nothing (or has not finished).
func (r *Repository) GetWebDeals(ctx context.Context, ticketID uuid.UUID) (*webdeals.Result, error) {
	var (
		result webdeals.Result
		deals  []byte
		best   []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT deals, COALESCE(search_summary, ''), best_deal, status
		FROM ticket_web_deals
		WHERE ticket_id = $1
	`, ticketID).Scan(&deals, &result.SearchSummary, &best, &result.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(deals, &result.Deals); err != nil {
		return nil, err
	}
	if len(best) > 0 {
		result.BestDeal = &webdeals.Deal{}
		if err := json.Unmarshal(best, result.BestDeal); err != nil {
			return nil, err
		}
	}

	return &result, nil
}
