package logistics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dialcart_backend/internal/ticket/domain"
)

var ErrOrderNotFound = errors.New("delivery order not found")

// Order is one delivery order with the provider. A ticket keeps at most one
// non-superseded order; rebooking supersedes the failed one.
type Order struct {
	ID              uuid.UUID
	TicketID        uuid.UUID
	StoreCallID     uuid.UUID
	ClientOrderID   string
	ProviderOrderID string
	QuoteID         string
	CourierID       string
	CourierName     string
	Price           float64
	State           domain.DeliveryState
	RiderName       string
	RiderPhone      string
	TrackingURL     string
	FailureReason   string
	Attempt         int
	Superseded      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RiderInfo carries the courier-assigned rider fields from a callback.
type RiderInfo struct {
	RiderName   string
	RiderPhone  string
	TrackingURL string
	Reason      string
}

// Repository provides data access for delivery orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new logistics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new delivery order in placing_order state.
func (r *Repository) Create(ctx context.Context, o *Order) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO logistics_orders
			(ticket_id, store_call_id, client_order_id, quote_id, courier_id, courier_name, price, state, attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, o.TicketID, o.StoreCallID, o.ClientOrderID, o.QuoteID, o.CourierID, o.CourierName,
		o.Price, string(domain.DeliveryPlacingOrder), o.Attempt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// SetQuote records the chosen courier quote on a pending order.
func (r *Repository) SetQuote(ctx context.Context, orderID uuid.UUID, quoteID, courierID, courierName string, price float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE logistics_orders
		SET quote_id = $2, courier_id = $3, courier_name = $4, price = $5, updated_at = now()
		WHERE id = $1
	`, orderID, quoteID, courierID, courierName, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkPlaced records the provider order id after a successful createasync and
// moves the order to order_placed.
func (r *Repository) MarkPlaced(ctx context.Context, orderID uuid.UUID, providerOrderID, trackingURL string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE logistics_orders
		SET provider_order_id = $2, tracking_url = $3, state = $4, updated_at = now()
		WHERE id = $1
	`, orderID, providerOrderID, trackingURL, string(domain.DeliveryOrderPlaced))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkFailed moves the order to delivery_failed with a reason.
func (r *Repository) MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE logistics_orders
		SET state = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1
	`, orderID, string(domain.DeliveryFailed), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateStateByProviderOrderID applies a callback-driven transition. The prior
// state guard makes duplicate and out-of-order callbacks no-ops: applied is
// false when the order exists but the transition did not apply.
func (r *Repository) UpdateStateByProviderOrderID(ctx context.Context, providerOrderID string, next domain.DeliveryState, rider RiderInfo) (*Order, bool, error) {
	priors := next.PriorStates()
	if len(priors) == 0 {
		return nil, false, nil
	}

	o := &Order{}
	err := r.pool.QueryRow(ctx, `
		UPDATE logistics_orders
		SET state = $2,
		    rider_name = COALESCE(NULLIF($3, ''), rider_name),
		    rider_phone = COALESCE(NULLIF($4, ''), rider_phone),
		    tracking_url = COALESCE(NULLIF($5, ''), tracking_url),
		    failure_reason = COALESCE(NULLIF($6, ''), failure_reason),
		    updated_at = now()
		WHERE provider_order_id = $1 AND state = ANY($7)
		RETURNING id, ticket_id, store_call_id, client_order_id, provider_order_id,
			quote_id, courier_id, courier_name, price, state, rider_name, rider_phone,
			tracking_url, failure_reason, attempt, superseded, created_at, updated_at
	`, providerOrderID, string(next), rider.RiderName, rider.RiderPhone,
		rider.TrackingURL, rider.Reason, priors,
	).Scan(
		&o.ID, &o.TicketID, &o.StoreCallID, &o.ClientOrderID, &o.ProviderOrderID,
		&o.QuoteID, &o.CourierID, &o.CourierName, &o.Price, &o.State, &o.RiderName,
		&o.RiderPhone, &o.TrackingURL, &o.FailureReason, &o.Attempt, &o.Superseded,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// GetActiveByTicket returns the ticket's current (non-superseded) order.
func (r *Repository) GetActiveByTicket(ctx context.Context, ticketID uuid.UUID) (*Order, error) {
	o := &Order{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, ticket_id, store_call_id, client_order_id, provider_order_id,
			quote_id, courier_id, courier_name, price, state, rider_name, rider_phone,
			tracking_url, failure_reason, attempt, superseded, created_at, updated_at
		FROM logistics_orders
		WHERE ticket_id = $1 AND superseded = false
		ORDER BY created_at DESC
		LIMIT 1
	`, ticketID).Scan(
		&o.ID, &o.TicketID, &o.StoreCallID, &o.ClientOrderID, &o.ProviderOrderID,
		&o.QuoteID, &o.CourierID, &o.CourierName, &o.Price, &o.State, &o.RiderName,
		&o.RiderPhone, &o.TrackingURL, &o.FailureReason, &o.Attempt, &o.Superseded,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Supersede retires an order so a rebooked one can take its place.
func (r *Repository) Supersede(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE logistics_orders SET superseded = true, updated_at = now()
		WHERE id = $1
	`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// FailedCourierIDs lists couriers whose orders for this ticket already failed,
// so rebooking does not pick them again.
func (r *Repository) FailedCourierIDs(ctx context.Context, ticketID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT courier_id FROM logistics_orders
		WHERE ticket_id = $1 AND state = $2 AND courier_id <> ''
	`, ticketID, string(domain.DeliveryFailed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
