package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dialcart_backend/internal/stores"
	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/transcript"
	"dialcart_backend/platform/apperr"
)

// Store is one discovered store attached to a ticket. CallPriority is the
// post-rank position; lower is called first.
type Store struct {
	ID           uuid.UUID
	TicketID     uuid.UUID
	PlaceID      string
	Name         string
	Address      string
	Phone        string
	Rating       float64
	TotalRatings int
	Lat          float64
	Lng          float64
	CallPriority int
	CreatedAt    time.Time
}

// StoreCall is one outbound call to a store. Analysis fields are null until
// the transcript analyzer runs.
type StoreCall struct {
	ID                uuid.UUID
	TicketID          uuid.UUID
	StoreID           uuid.UUID
	ProviderCallID    string
	Status            domain.CallStatus
	Transcript        string
	Available         *bool
	MatchedProduct    string
	Price             *float64
	MatchType         domain.MatchType
	DeliveryAvailable bool
	DeliveryETA       string
	DeliveryCharge    float64
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CallWithStore joins a call with its store for option assembly.
type CallWithStore struct {
	Call  StoreCall
	Store Store
}

// InsertStores persists ranked candidates for a ticket, priority in slice
// order. Duplicate place ids for the same ticket are skipped, never updated.
func (r *Repository) InsertStores(ctx context.Context, ticketID uuid.UUID, candidates []stores.Candidate) ([]Store, error) {
	out := make([]Store, 0, len(candidates))
	for i, c := range candidates {
		s := Store{
			TicketID:     ticketID,
			PlaceID:      c.PlaceID,
			Name:         c.Name,
			Address:      c.Address,
			Phone:        c.Phone,
			Rating:       c.Rating,
			TotalRatings: c.TotalRatings,
			Lat:          c.Lat,
			Lng:          c.Lng,
			CallPriority: i,
		}

		err := r.pool.QueryRow(ctx, `
			INSERT INTO ticket_stores
				(ticket_id, place_id, name, address, phone, rating, total_ratings, lat, lng, call_priority)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (ticket_id, place_id) DO NOTHING
			RETURNING id, created_at
		`, ticketID, s.PlaceID, s.Name, s.Address, s.Phone, s.Rating, s.TotalRatings,
			s.Lat, s.Lng, s.CallPriority,
		).Scan(&s.ID, &s.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}
	return out, nil
}

// GetStore retrieves one store row.
func (r *Repository) GetStore(ctx context.Context, storeID uuid.UUID) (*Store, error) {
	s := &Store{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, ticket_id, place_id, name, address, phone, rating, total_ratings,
			lat, lng, call_priority, created_at
		FROM ticket_stores
		WHERE id = $1
	`, storeID).Scan(
		&s.ID, &s.TicketID, &s.PlaceID, &s.Name, &s.Address, &s.Phone, &s.Rating,
		&s.TotalRatings, &s.Lat, &s.Lng, &s.CallPriority, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("store not found")
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCall inserts a queued call for a store.
func (r *Repository) CreateCall(ctx context.Context, ticketID, storeID uuid.UUID) (*StoreCall, error) {
	c := &StoreCall{
		TicketID: ticketID,
		StoreID:  storeID,
		Status:   domain.CallQueued,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO store_calls (ticket_id, store_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, ticketID, storeID, string(domain.CallQueued)).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetProviderCallID attaches the provider's call id once the call is placed.
func (r *Repository) SetProviderCallID(ctx context.Context, callID uuid.UUID, providerCallID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE store_calls SET provider_call_id = $2, updated_at = now()
		WHERE id = $1
	`, callID, providerCallID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("store call not found")
	}
	return nil
}

// UpdateCallStatus applies a guarded transition by call id. applied is false
// when the row is missing or the transition is not legal from its current
// status.
func (r *Repository) UpdateCallStatus(ctx context.Context, callID uuid.UUID, next domain.CallStatus) (bool, error) {
	priors := next.PriorStates()
	if len(priors) == 0 {
		return false, nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE store_calls SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, callID, string(next), priors)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateCallStatusByProviderID applies a guarded transition keyed by the
// provider call id, returning the affected row when it applied.
func (r *Repository) UpdateCallStatusByProviderID(ctx context.Context, providerCallID string, next domain.CallStatus) (*StoreCall, bool, error) {
	priors := next.PriorStates()
	if len(priors) == 0 {
		return nil, false, nil
	}

	c := &StoreCall{}
	err := r.pool.QueryRow(ctx, `
		UPDATE store_calls SET status = $2, updated_at = now()
		WHERE provider_call_id = $1 AND status = ANY($3)
		RETURNING id, ticket_id, store_id, COALESCE(provider_call_id, ''), status,
			COALESCE(transcript, ''), created_at, updated_at
	`, providerCallID, string(next), priors).Scan(
		&c.ID, &c.TicketID, &c.StoreID, &c.ProviderCallID, &c.Status,
		&c.Transcript, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// GetCallByProviderID retrieves a call by the provider call id.
func (r *Repository) GetCallByProviderID(ctx context.Context, providerCallID string) (*StoreCall, error) {
	c := &StoreCall{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, ticket_id, store_id, COALESCE(provider_call_id, ''), status,
			COALESCE(transcript, ''), created_at, updated_at
		FROM store_calls
		WHERE provider_call_id = $1
	`, providerCallID).Scan(
		&c.ID, &c.TicketID, &c.StoreID, &c.ProviderCallID, &c.Status,
		&c.Transcript, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("store call not found")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SaveTranscript stores the call transcript without touching status.
func (r *Repository) SaveTranscript(ctx context.Context, callID uuid.UUID, transcriptText string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE store_calls SET transcript = $2, updated_at = now()
		WHERE id = $1
	`, callID, transcriptText)
	return err
}

// SaveAnalysis stores the transcript analysis and moves the call to analyzed
// or unanalyzable. Guarded: only a completed call accepts an analysis.
func (r *Repository) SaveAnalysis(ctx context.Context, callID uuid.UUID, a transcript.Analysis, next domain.CallStatus) (bool, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return false, err
	}

	var price *float64
	if a.Price > 0 {
		price = &a.Price
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE store_calls
		SET status = $2, analysis = $3, available = $4, matched_product = $5,
		    price = $6, match_type = $7, delivery_available = $8,
		    delivery_eta = $9, delivery_charge = $10, notes = $11, updated_at = now()
		WHERE id = $1 AND status = ANY($12)
	`, callID, string(next), raw, a.Available, a.MatchedProduct, price,
		a.MatchType, a.DeliveryAvailable, a.DeliveryETA, a.DeliveryCharge,
		a.Notes, next.PriorStates())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StoreCount counts the stores discovered for a ticket, independent of
// whether calls exist yet.
func (r *Repository) StoreCount(ctx context.Context, ticketID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM ticket_stores
		WHERE ticket_id = $1
	`, ticketID).Scan(&n)
	return n, err
}

// PendingCallCount counts calls still holding the ticket's completion open.
func (r *Repository) PendingCallCount(ctx context.Context, ticketID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM store_calls
		WHERE ticket_id = $1 AND status = ANY($2)
	`, ticketID, domain.PendingCallStatuses()).Scan(&n)
	return n, err
}

// CallCounts returns the number of calls per status for progress reporting.
func (r *Repository) CallCounts(ctx context.Context, ticketID uuid.UUID) (map[domain.CallStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*) FROM store_calls
		WHERE ticket_id = $1
		GROUP BY status
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.CallStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.CallStatus(status)] = n
	}
	return counts, rows.Err()
}

// ListCallsWithStores returns every call for the ticket joined with its store,
// in discovery priority order.
func (r *Repository) ListCallsWithStores(ctx context.Context, ticketID uuid.UUID) ([]CallWithStore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.ticket_id, c.store_id, COALESCE(c.provider_call_id, ''), c.status,
			COALESCE(c.transcript, ''), c.available, COALESCE(c.matched_product, ''),
			c.price, COALESCE(c.match_type, ''), COALESCE(c.delivery_available, false),
			COALESCE(c.delivery_eta, ''), COALESCE(c.delivery_charge, 0),
			COALESCE(c.notes, ''), c.created_at, c.updated_at,
			s.id, s.ticket_id, s.place_id, s.name, s.address, s.phone, s.rating,
			s.total_ratings, s.lat, s.lng, s.call_priority, s.created_at
		FROM store_calls c
		JOIN ticket_stores s ON s.id = c.store_id
		WHERE c.ticket_id = $1
		ORDER BY s.call_priority ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallWithStore
	for rows.Next() {
		var cw CallWithStore
		var matchType string
		if err := rows.Scan(
			&cw.Call.ID, &cw.Call.TicketID, &cw.Call.StoreID, &cw.Call.ProviderCallID,
			&cw.Call.Status, &cw.Call.Transcript, &cw.Call.Available, &cw.Call.MatchedProduct,
			&cw.Call.Price, &matchType, &cw.Call.DeliveryAvailable, &cw.Call.DeliveryETA,
			&cw.Call.DeliveryCharge, &cw.Call.Notes, &cw.Call.CreatedAt, &cw.Call.UpdatedAt,
			&cw.Store.ID, &cw.Store.TicketID, &cw.Store.PlaceID, &cw.Store.Name,
			&cw.Store.Address, &cw.Store.Phone, &cw.Store.Rating, &cw.Store.TotalRatings,
			&cw.Store.Lat, &cw.Store.Lng, &cw.Store.CallPriority, &cw.Store.CreatedAt,
		); err != nil {
			return nil, err
		}
		cw.Call.MatchType = domain.MatchType(matchType)
		out = append(out, cw)
	}
	return out, rows.Err()
}

// GetCallWithStore retrieves one call joined with its store, scoped to the
// ticket so a call from another ticket cannot be confirmed.
func (r *Repository) GetCallWithStore(ctx context.Context, ticketID, callID uuid.UUID) (*CallWithStore, error) {
	all, err := r.ListCallsWithStores(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Call.ID == callID {
			return &all[i], nil
		}
	}
	return nil, apperr.NotFound("store call not found for ticket")
}
