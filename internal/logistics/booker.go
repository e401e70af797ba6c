package logistics

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/platform/apperr"
	"dialcart_backend/platform/logger"
)

// BookingInput is everything needed to place a delivery order. The caller
// assembles it from the confirmed option so this package never reads ticket
// tables directly.
type BookingInput struct {
	TicketID     uuid.UUID
	StoreCallID  uuid.UUID
	CustomerName string
	UserPhone    string
	DropAddress  string
	StoreName    string
	StoreAddress string
	StorePhone   string
	StoreLat     float64
	StoreLng     float64
	ProductName  string
	ProductPrice float64
}

// InputSource rebuilds the booking input for a ticket, used when a failed
// order is rebooked from a provider callback.
type InputSource interface {
	BookingInput(ctx context.Context, ticketID uuid.UUID) (*BookingInput, error)
}

// CourierClient is the slice of the delivery provider API the booker uses.
type CourierClient interface {
	GetQuotes(ctx context.Context, req QuoteRequest) (*QuotesResponse, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
}

// AddressResolver resolves addresses and coordinates to postal fields.
type AddressResolver interface {
	Geocode(ctx context.Context, address string) (*GeoPoint, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeoPoint, error)
}

// OrderStore is the persistence surface the booker uses, satisfied by
// *Repository.
type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	SetQuote(ctx context.Context, orderID uuid.UUID, quoteID, courierID, courierName string, price float64) error
	MarkPlaced(ctx context.Context, orderID uuid.UUID, providerOrderID, trackingURL string) error
	MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error
	GetActiveByTicket(ctx context.Context, ticketID uuid.UUID) (*Order, error)
	Supersede(ctx context.Context, orderID uuid.UUID) error
	FailedCourierIDs(ctx context.Context, ticketID uuid.UUID) ([]string, error)
}

// Booker places delivery orders: geocode both ends, quote couriers, pick the
// cheapest, and create the order with the provider.
type Booker struct {
	client     CourierClient
	geocoder   AddressResolver
	repo       OrderStore
	maxRetries int
	log        *logger.Logger
}

// NewBooker creates a Booker.
func NewBooker(client CourierClient, geocoder AddressResolver, repo OrderStore, maxRetries int, log *logger.Logger) *Booker {
	return &Booker{
		client:     client,
		geocoder:   geocoder,
		repo:       repo,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Book places the first delivery order for a confirmed option.
func (b *Booker) Book(ctx context.Context, input *BookingInput) (*Order, error) {
	return b.book(ctx, input, 0, nil)
}

// Rebook places a replacement order after a courier-side failure. The failed
// order is superseded and its courier excluded from the new quote pick.
// Returns apperr.Conflict once the retry budget is spent.
func (b *Booker) Rebook(ctx context.Context, ticketID uuid.UUID, source InputSource) (*Order, error) {
	prev, err := b.repo.GetActiveByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if prev.Attempt+1 > b.maxRetries {
		return nil, apperr.Conflict("delivery retry budget exhausted")
	}

	input, err := source.BookingInput(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	excluded, err := b.repo.FailedCourierIDs(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if err := b.repo.Supersede(ctx, prev.ID); err != nil {
		return nil, err
	}

	exclSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		exclSet[id] = true
	}

	b.log.Info("rebooking delivery",
		"ticket_id", ticketID.String(),
		"attempt", prev.Attempt+1,
		"excluded_couriers", len(exclSet),
	)

	return b.book(ctx, input, prev.Attempt+1, exclSet)
}

// book runs one booking attempt. The order row is created first so every
// failure after this point is visible as delivery_failed to anyone reading the
// delivery snapshot, not just as an error on the confirm response.
func (b *Booker) book(ctx context.Context, input *BookingInput, attempt int, excluded map[string]bool) (*Order, error) {
	order := &Order{
		TicketID:      input.TicketID,
		StoreCallID:   input.StoreCallID,
		ClientOrderID: clientOrderID(input.TicketID),
		Attempt:       attempt,
	}
	if err := b.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create delivery order: %w", err)
	}

	drop, err := b.geocoder.Geocode(ctx, input.DropAddress)
	if err != nil {
		return nil, b.failOrder(ctx, order, fmt.Errorf("failed to geocode drop address: %w", err))
	}
	if drop.Pincode == "" {
		return nil, b.failOrder(ctx, order, apperr.Validation("drop address has no resolvable pincode"))
	}

	pickup, err := b.pickupPoint(ctx, input)
	if err != nil {
		return nil, b.failOrder(ctx, order, err)
	}

	quotes, err := b.client.GetQuotes(ctx, QuoteRequest{
		PickupLat:     input.StoreLat,
		PickupLng:     input.StoreLng,
		PickupPincode: pickup.Pincode,
		DropLat:       drop.Lat,
		DropLng:       drop.Lng,
		DropPincode:   drop.Pincode,
		City:          drop.City,
		OrderAmount:   input.ProductPrice,
		OrderWeight:   defaultOrderWeightGrams,
	})
	if err != nil {
		return nil, b.failOrder(ctx, order, fmt.Errorf("failed to fetch courier quotes: %w", err))
	}

	best := FindCheapest(quotes.Quotes, excluded)
	if best == nil {
		return nil, b.failOrder(ctx, order, apperr.Upstream("no courier available for this route"))
	}

	if err := b.repo.SetQuote(ctx, order.ID, quotes.QuoteID, best.CourierID, best.CourierName, best.Price); err != nil {
		return nil, b.failOrder(ctx, order, fmt.Errorf("failed to record courier quote: %w", err))
	}
	order.QuoteID = quotes.QuoteID
	order.CourierID = best.CourierID
	order.CourierName = best.CourierName
	order.Price = best.Price

	resp, err := b.client.CreateOrder(ctx, CreateOrderRequest{
		ClientOrderID: order.ClientOrderID,
		Pickup: Party{
			Lat:     input.StoreLat,
			Lng:     input.StoreLng,
			Name:    input.StoreName,
			Line1:   input.StoreAddress,
			City:    pickup.City,
			State:   pickup.State,
			Pincode: pickup.Pincode,
			Phone:   input.StorePhone,
		},
		Drop: Party{
			Lat:     drop.Lat,
			Lng:     drop.Lng,
			Name:    input.CustomerName,
			Line1:   input.DropAddress,
			City:    drop.City,
			State:   drop.State,
			Pincode: drop.Pincode,
			Phone:   input.UserPhone,
		},
		OrderAmount: input.ProductPrice,
		OrderWeight: defaultOrderWeightGrams,
		Items: []OrderItem{
			{Name: input.ProductName, Qty: 1, Price: input.ProductPrice},
		},
		CourierID: best.CourierID,
		QuoteID:   quotes.QuoteID,
	})
	if err != nil {
		return nil, b.failOrder(ctx, order, fmt.Errorf("failed to place delivery order: %w", err))
	}

	if err := b.repo.MarkPlaced(ctx, order.ID, resp.Order.ID, resp.Order.TrackingURL); err != nil {
		return nil, fmt.Errorf("failed to record placed order: %w", err)
	}
	order.ProviderOrderID = resp.Order.ID
	order.TrackingURL = resp.Order.TrackingURL
	order.State = domain.DeliveryOrderPlaced

	b.log.Info("delivery order placed",
		"ticket_id", input.TicketID.String(),
		"order_id", order.ID.String(),
		"courier", best.CourierName,
		"price", best.Price,
	)

	return order, nil
}

// failOrder moves the attempt's order row to delivery_failed and passes the
// cause through unchanged.
func (b *Booker) failOrder(ctx context.Context, order *Order, cause error) error {
	order.State = domain.DeliveryFailed
	order.FailureReason = cause.Error()
	if err := b.repo.MarkFailed(ctx, order.ID, cause.Error()); err != nil {
		b.log.DatabaseError("mark delivery order failed", err)
	}
	return cause
}

// pickupPoint resolves the store's postal fields: pincode from address text
// when present, reverse geocode otherwise.
func (b *Booker) pickupPoint(ctx context.Context, input *BookingInput) (*GeoPoint, error) {
	point := &GeoPoint{
		Lat:     input.StoreLat,
		Lng:     input.StoreLng,
		Pincode: ExtractPincode(input.StoreAddress),
		City:    cityFromAddress(input.StoreAddress),
	}
	if point.Pincode != "" {
		return point, nil
	}

	resolved, err := b.geocoder.ReverseGeocode(ctx, input.StoreLat, input.StoreLng)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store pincode: %w", err)
	}
	if resolved.Pincode == "" {
		return nil, apperr.Validation("store address has no resolvable pincode")
	}

	point.Pincode = resolved.Pincode
	if point.City == "" {
		point.City = resolved.City
	}
	point.State = resolved.State
	return point, nil
}

// cityFromAddress pulls the city segment out of a formatted Indian address,
// which ends "..., City, State Pincode, India".
func cityFromAddress(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 3 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-3])
}

func clientOrderID(ticketID uuid.UUID) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s", ticketID.String(), suffix)
}

const defaultOrderWeightGrams = 1000
