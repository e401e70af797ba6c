package logistics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/platform/apperr"
	"dialcart_backend/platform/logger"
)

type fakeCourier struct {
	quotes     *QuotesResponse
	quotesErr  error
	createResp *CreateOrderResponse
	createErr  error
	createReqs []CreateOrderRequest
}

func (f *fakeCourier) GetQuotes(ctx context.Context, req QuoteRequest) (*QuotesResponse, error) {
	if f.quotesErr != nil {
		return nil, f.quotesErr
	}
	return f.quotes, nil
}

func (f *fakeCourier) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	f.createReqs = append(f.createReqs, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResp, nil
}

type fakeResolver struct {
	point *GeoPoint
	err   error
}

func (f *fakeResolver) Geocode(ctx context.Context, address string) (*GeoPoint, error) {
	return f.point, f.err
}

func (f *fakeResolver) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeoPoint, error) {
	return f.point, f.err
}

type fakeOrderStore struct {
	orders    []*Order
	active    *Order
	failedIDs []string
}

func (f *fakeOrderStore) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	o.State = domain.DeliveryPlacingOrder
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeOrderStore) SetQuote(ctx context.Context, orderID uuid.UUID, quoteID, courierID, courierName string, price float64) error {
	o := f.byID(orderID)
	if o == nil {
		return ErrOrderNotFound
	}
	o.QuoteID = quoteID
	o.CourierID = courierID
	o.CourierName = courierName
	o.Price = price
	return nil
}

func (f *fakeOrderStore) MarkPlaced(ctx context.Context, orderID uuid.UUID, providerOrderID, trackingURL string) error {
	o := f.byID(orderID)
	if o == nil {
		return ErrOrderNotFound
	}
	o.ProviderOrderID = providerOrderID
	o.TrackingURL = trackingURL
	o.State = domain.DeliveryOrderPlaced
	return nil
}

func (f *fakeOrderStore) MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	o := f.byID(orderID)
	if o == nil {
		return ErrOrderNotFound
	}
	o.State = domain.DeliveryFailed
	o.FailureReason = reason
	return nil
}

func (f *fakeOrderStore) GetActiveByTicket(ctx context.Context, ticketID uuid.UUID) (*Order, error) {
	if f.active == nil {
		return nil, ErrOrderNotFound
	}
	return f.active, nil
}

func (f *fakeOrderStore) Supersede(ctx context.Context, orderID uuid.UUID) error {
	o := f.byID(orderID)
	if o == nil {
		return ErrOrderNotFound
	}
	o.Superseded = true
	return nil
}

func (f *fakeOrderStore) FailedCourierIDs(ctx context.Context, ticketID uuid.UUID) ([]string, error) {
	return f.failedIDs, nil
}

func (f *fakeOrderStore) byID(orderID uuid.UUID) *Order {
	if f.active != nil && f.active.ID == orderID {
		return f.active
	}
	for _, o := range f.orders {
		if o.ID == orderID {
			return o
		}
	}
	return nil
}

type fakeInputSource struct {
	input *BookingInput
}

func (f fakeInputSource) BookingInput(ctx context.Context, ticketID uuid.UUID) (*BookingInput, error) {
	return f.input, nil
}

func testBookingInput() *BookingInput {
	return &BookingInput{
		TicketID:     uuid.New(),
		StoreCallID:  uuid.New(),
		CustomerName: "Asha",
		UserPhone:    "+919876543210",
		DropAddress:  "221 Residency Road, Bengaluru, Karnataka 560025, India",
		StoreName:    "City Electronics",
		StoreAddress: "12 MG Road, Indiranagar, Bengaluru, Karnataka 560038, India",
		StorePhone:   "+918012345678",
		StoreLat:     12.97,
		StoreLng:     77.64,
		ProductName:  "wireless mouse",
		ProductPrice: 1499,
	}
}

func dropPoint() *GeoPoint {
	return &GeoPoint{Lat: 12.96, Lng: 77.6, Pincode: "560025", City: "Bengaluru", State: "Karnataka"}
}

func TestBookRecordsFailedOrderWhenGeocodeFails(t *testing.T) {
	store := &fakeOrderStore{}
	b := NewBooker(&fakeCourier{}, &fakeResolver{err: errors.New("maps down")}, store, 2, logger.New("test"))

	_, err := b.Book(context.Background(), testBookingInput())
	if err == nil {
		t.Fatal("expected booking error")
	}

	if len(store.orders) != 1 {
		t.Fatalf("orders = %d, want 1 failed row", len(store.orders))
	}
	o := store.orders[0]
	if o.State != domain.DeliveryFailed {
		t.Errorf("order state = %s, want %s", o.State, domain.DeliveryFailed)
	}
	if !strings.Contains(o.FailureReason, "geocode") {
		t.Errorf("failure reason = %q, want geocode cause", o.FailureReason)
	}
}

func TestBookRecordsFailedOrderWhenNoCourierAvailable(t *testing.T) {
	store := &fakeOrderStore{}
	courier := &fakeCourier{quotes: &QuotesResponse{QuoteID: "q-1"}}
	b := NewBooker(courier, &fakeResolver{point: dropPoint()}, store, 2, logger.New("test"))

	_, err := b.Book(context.Background(), testBookingInput())
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("err = %v, want upstream error", err)
	}

	if len(store.orders) != 1 || store.orders[0].State != domain.DeliveryFailed {
		t.Fatalf("orders = %+v, want one delivery_failed row", store.orders)
	}
}

func TestBookRecordsFailedOrderWhenProviderRejects(t *testing.T) {
	store := &fakeOrderStore{}
	courier := &fakeCourier{
		quotes:    &QuotesResponse{QuoteID: "q-1", Quotes: []Quote{{CourierID: "lsp-a", CourierName: "Swift", Price: 60}}},
		createErr: errors.New("upstream 500"),
	}
	b := NewBooker(courier, &fakeResolver{point: dropPoint()}, store, 2, logger.New("test"))

	_, err := b.Book(context.Background(), testBookingInput())
	if err == nil {
		t.Fatal("expected booking error")
	}

	if len(store.orders) != 1 || store.orders[0].State != domain.DeliveryFailed {
		t.Fatalf("orders = %+v, want one delivery_failed row", store.orders)
	}
}

func TestBookPlacesOrder(t *testing.T) {
	store := &fakeOrderStore{}
	courier := &fakeCourier{
		quotes: &QuotesResponse{QuoteID: "q-1", Quotes: []Quote{
			{CourierID: "lsp-a", CourierName: "Swift", Price: 60},
			{CourierID: "lsp-b", CourierName: "Dart", Price: 45},
		}},
		createResp: func() *CreateOrderResponse {
			r := &CreateOrderResponse{}
			r.Order.ID = "prov-1"
			r.Order.TrackingURL = "https://track/prov-1"
			return r
		}(),
	}
	b := NewBooker(courier, &fakeResolver{point: dropPoint()}, store, 2, logger.New("test"))

	order, err := b.Book(context.Background(), testBookingInput())
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if order.State != domain.DeliveryOrderPlaced {
		t.Errorf("state = %s, want %s", order.State, domain.DeliveryOrderPlaced)
	}
	if order.CourierID != "lsp-b" {
		t.Errorf("courier = %s, want cheapest lsp-b", order.CourierID)
	}
	if order.ProviderOrderID != "prov-1" || order.TrackingURL == "" {
		t.Errorf("provider fields not recorded: %+v", order)
	}
	if len(courier.createReqs) != 1 || courier.createReqs[0].CourierID != "lsp-b" {
		t.Errorf("create requests = %+v, want one for lsp-b", courier.createReqs)
	}
}

func TestRebookExcludesFailedCouriersAndSupersedes(t *testing.T) {
	input := testBookingInput()
	prev := &Order{
		ID:        uuid.New(),
		TicketID:  input.TicketID,
		CourierID: "lsp-b",
		State:     domain.DeliveryFailed,
		Attempt:   0,
	}
	store := &fakeOrderStore{active: prev, failedIDs: []string{"lsp-b"}}
	courier := &fakeCourier{
		quotes: &QuotesResponse{QuoteID: "q-2", Quotes: []Quote{
			{CourierID: "lsp-b", CourierName: "Dart", Price: 45},
			{CourierID: "lsp-c", CourierName: "Bolt", Price: 70},
		}},
		createResp: func() *CreateOrderResponse {
			r := &CreateOrderResponse{}
			r.Order.ID = "prov-2"
			return r
		}(),
	}
	b := NewBooker(courier, &fakeResolver{point: dropPoint()}, store, 2, logger.New("test"))

	order, err := b.Rebook(context.Background(), input.TicketID, fakeInputSource{input: input})
	if err != nil {
		t.Fatalf("Rebook: %v", err)
	}

	if order.CourierID != "lsp-c" {
		t.Errorf("courier = %s, want lsp-c (lsp-b already failed)", order.CourierID)
	}
	if order.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", order.Attempt)
	}
	if !prev.Superseded {
		t.Error("previous order must be superseded")
	}
}

func TestRebookStopsAtRetryBudget(t *testing.T) {
	input := testBookingInput()
	prev := &Order{ID: uuid.New(), TicketID: input.TicketID, State: domain.DeliveryFailed, Attempt: 2}
	store := &fakeOrderStore{active: prev}
	b := NewBooker(&fakeCourier{}, &fakeResolver{point: dropPoint()}, store, 2, logger.New("test"))

	_, err := b.Rebook(context.Background(), input.TicketID, fakeInputSource{input: input})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict once the budget is spent", err)
	}
	if len(store.orders) != 0 {
		t.Errorf("orders = %d, want no new attempt", len(store.orders))
	}
	if prev.Superseded {
		t.Error("exhausted rebook must not supersede the failed order")
	}
}
