// Package repository provides data access for tickets, their researched
// products, discovered stores, outbound calls, and web deals.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dialcart_backend/internal/research"
	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/platform/apperr"
)

// Ticket is one purchase request moving through the pipeline.
// ConfirmedCallID is set exactly once when the requester picks an option.
type Ticket struct {
	ID              uuid.UUID
	Query           string
	Location        string
	UserPhone       string
	UserName        string
	MaxStores       int
	Status          domain.TicketStatus
	ErrorMessage    string
	FinalResult     []byte
	ConfirmedCallID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository provides data access for the ticket bounded context.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new ticket repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTicket inserts a new ticket in received state.
func (r *Repository) CreateTicket(ctx context.Context, t *Ticket) error {
	t.Status = domain.StatusReceived
	return r.pool.QueryRow(ctx, `
		INSERT INTO tickets (query, location, user_phone, user_name, max_stores, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, t.Query, t.Location, t.UserPhone, t.UserName, t.MaxStores, string(t.Status),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetTicket retrieves a ticket by id.
func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	t := &Ticket{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, query, location, user_phone, user_name, max_stores, status,
			COALESCE(error_message, ''), final_result, confirmed_call_id, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.Query, &t.Location, &t.UserPhone, &t.UserName, &t.MaxStores,
		&t.Status, &t.ErrorMessage, &t.FinalResult, &t.ConfirmedCallID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ticket not found")
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// AdvanceStatus moves the ticket forward to next. The guard only matches rows
// whose current status legally transitions to next, so replays and stale
// writers are no-ops; applied is false in that case.
func (r *Repository) AdvanceStatus(ctx context.Context, id uuid.UUID, next domain.TicketStatus) (bool, error) {
	priors := ticketPriors(next)
	if len(priors) == 0 {
		return false, fmt.Errorf("no legal prior states for ticket status %s", next)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, id, string(next), priors)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed moves the ticket to failed with a reason, from any active state.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($4)
	`, id, string(domain.StatusFailed), reason, domain.ActiveStatuses())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteTicket stores the compiled final result and marks the ticket
// completed. Guarded so it applies at most once.
func (r *Repository) CompleteTicket(ctx context.Context, id uuid.UUID, finalResult []byte) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = $2, final_result = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($4)
	`, id, string(domain.StatusCompleted), finalResult, ticketPriors(domain.StatusCompleted))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ConfirmCall records the chosen option on a completed ticket. The conditional
// update makes confirm single-use: applied is false on a repeat confirm or
// when the ticket is not completed.
func (r *Repository) ConfirmCall(ctx context.Context, ticketID, callID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET confirmed_call_id = $2, updated_at = now()
		WHERE id = $1 AND status = $3 AND confirmed_call_id IS NULL
	`, ticketID, callID, string(domain.StatusCompleted))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func ticketPriors(next domain.TicketStatus) []string {
	var priors []string
	for _, s := range domain.ActiveStatuses() {
		if domain.TicketStatus(s).CanTransitionTo(next) {
			priors = append(priors, s)
		}
	}
	return priors
}

// SaveProduct persists the researched product for a ticket. Immutable after
// insert; a replayed pipeline stage keeps the first write.
func (r *Repository) SaveProduct(ctx context.Context, ticketID uuid.UUID, p *research.Product) error {
	specs, err := json.Marshal(p.Specs)
	if err != nil {
		return err
	}
	alternatives, err := json.Marshal(p.Alternatives)
	if err != nil {
		return err
	}
	searchTerms, err := json.Marshal(p.SearchTerms)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO ticket_products
			(ticket_id, name, category, specs, alternatives, search_terms, store_search_query, avg_price_online)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticket_id) DO NOTHING
	`, ticketID, p.Name, p.Category, specs, alternatives, searchTerms, p.StoreSearchQuery, p.AvgPriceOnline)
	return err
}

// GetProduct retrieves the researched product for a ticket.
func (r *Repository) GetProduct(ctx context.Context, ticketID uuid.UUID) (*research.Product, error) {
	var (
		p            research.Product
		specs        []byte
		alternatives []byte
		searchTerms  []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT name, category, specs, alternatives, search_terms, store_search_query, avg_price_online
		FROM ticket_products
		WHERE ticket_id = $1
	`, ticketID).Scan(&p.Name, &p.Category, &specs, &alternatives, &searchTerms, &p.StoreSearchQuery, &p.AvgPriceOnline)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product not found for ticket")
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(specs, &p.Specs); err != nil {
		return nil, fmt.Errorf("failed to decode product specs: %w", err)
	}
	if err := json.Unmarshal(alternatives, &p.Alternatives); err != nil {
		return nil, fmt.Errorf("failed to decode product alternatives: %w", err)
	}
	if err := json.Unmarshal(searchTerms, &p.SearchTerms); err != nil {
		return nil, fmt.Errorf("failed to decode product search terms: %w", err)
	}

	return &p, nil
}
