// Package service implements the ticket orchestration: synchronous intent
// classification on create, the async pipeline stages, call lifecycle event
// handling, option ranking, and confirm-to-delivery handoff.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"dialcart_backend/internal/intent"
	"dialcart_backend/internal/logistics"
	"dialcart_backend/internal/research"
	"dialcart_backend/internal/scheduler"
	"dialcart_backend/internal/stores"
	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/ticket/transport"
	"dialcart_backend/internal/transcript"
	"dialcart_backend/internal/voice"
	"dialcart_backend/internal/webdeals"
	"dialcart_backend/platform/apperr"
	"dialcart_backend/platform/logger"
	"dialcart_backend/platform/phone"

	appevents "dialcart_backend/internal/events"
)

// CallPlacer is the telephony surface the service needs.
type CallPlacer interface {
	PlaceStoreCall(ctx context.Context, req voice.StoreCallRequest) (string, error)
}

// DeliveryBooker places the delivery order for a confirmed option.
type DeliveryBooker interface {
	Book(ctx context.Context, input *logistics.BookingInput) (*logistics.Order, error)
}

// Repo is the persistence surface the service depends on, satisfied by
// *repository.Repository.
type Repo interface {
	CreateTicket(ctx context.Context, t *repository.Ticket) error
	GetTicket(ctx context.Context, id uuid.UUID) (*repository.Ticket, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, next domain.TicketStatus) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	CompleteTicket(ctx context.Context, id uuid.UUID, finalResult []byte) (bool, error)
	ConfirmCall(ctx context.Context, ticketID, callID uuid.UUID) (bool, error)

	SaveProduct(ctx context.Context, ticketID uuid.UUID, p *research.Product) error
	GetProduct(ctx context.Context, ticketID uuid.UUID) (*research.Product, error)

	InsertStores(ctx context.Context, ticketID uuid.UUID, candidates []stores.Candidate) ([]repository.Store, error)
	StoreCount(ctx context.Context, ticketID uuid.UUID) (int, error)

	CreateCall(ctx context.Context, ticketID, storeID uuid.UUID) (*repository.StoreCall, error)
	SetProviderCallID(ctx context.Context, callID uuid.UUID, providerCallID string) error
	UpdateCallStatus(ctx context.Context, callID uuid.UUID, next domain.CallStatus) (bool, error)
	UpdateCallStatusByProviderID(ctx context.Context, providerCallID string, next domain.CallStatus) (*repository.StoreCall, bool, error)
	GetCallByProviderID(ctx context.Context, providerCallID string) (*repository.StoreCall, error)
	SaveTranscript(ctx context.Context, callID uuid.UUID, transcriptText string) error
	SaveAnalysis(ctx context.Context, callID uuid.UUID, a transcript.Analysis, next domain.CallStatus) (bool, error)
	PendingCallCount(ctx context.Context, ticketID uuid.UUID) (int, error)
	CallCounts(ctx context.Context, ticketID uuid.UUID) (map[domain.CallStatus]int, error)
	ListCallsWithStores(ctx context.Context, ticketID uuid.UUID) ([]repository.CallWithStore, error)
	GetCallWithStore(ctx context.Context, ticketID, callID uuid.UUID) (*repository.CallWithStore, error)

	SaveWebDeals(ctx context.Context, ticketID uuid.UUID, result *webdeals.Result) error
	GetWebDeals(ctx context.Context, ticketID uuid.UUID) (*webdeals.Result, error)
}

// Service orchestrates the ticket lifecycle.
type Service struct {
	repo        Repo
	classifier  *intent.Classifier
	analyzer    *research.Analyzer
	researcher  *research.Researcher
	finder      *stores.Finder
	ranker      *stores.Ranker
	caller      CallPlacer
	transcripts *transcript.Analyzer
	deals       *webdeals.Finder
	booker      DeliveryBooker
	tasks       scheduler.TaskScheduler
	bus         appevents.Bus
	log         *logger.Logger

	callTimeout time.Duration
	// callSlots caps in-flight outbound calls across all tickets, so a burst
	// of tickets cannot flood the telephony provider.
	callSlots *semaphore.Weighted
}

// New creates the ticket service.
func New(
	repo Repo,
	classifier *intent.Classifier,
	analyzer *research.Analyzer,
	researcher *research.Researcher,
	finder *stores.Finder,
	ranker *stores.Ranker,
	caller CallPlacer,
	transcripts *transcript.Analyzer,
	deals *webdeals.Finder,
	booker DeliveryBooker,
	tasks scheduler.TaskScheduler,
	bus appevents.Bus,
	callTimeout time.Duration,
	callConcurrency int,
	log *logger.Logger,
) *Service {
	if callConcurrency < 1 {
		callConcurrency = 1
	}

	return &Service{
		repo:        repo,
		classifier:  classifier,
		analyzer:    analyzer,
		researcher:  researcher,
		finder:      finder,
		ranker:      ranker,
		caller:      caller,
		transcripts: transcripts,
		deals:       deals,
		booker:      booker,
		tasks:       tasks,
		bus:         bus,
		log:         log,
		callTimeout: callTimeout,
		callSlots:   semaphore.NewWeighted(int64(callConcurrency)),
	}
}

// Create validates the request, classifies the intent synchronously, and when
// it is an order, persists the ticket and schedules the pipeline. Non-order
// intents are rejected without persisting anything.
func (s *Service) Create(ctx context.Context, req transport.CreateTicketRequest) (*transport.CreateTicketResponse, error) {
	query := strings.TrimSpace(req.Query)
	location := strings.TrimSpace(req.Location)
	if query == "" {
		return nil, apperr.Validation("query must not be empty")
	}
	if location == "" {
		return nil, apperr.Validation("location must not be empty")
	}

	if !phone.IsDialable(req.UserPhone) {
		return nil, apperr.Validation("user_phone is not a valid phone number")
	}
	userPhone := phone.NormalizeE164(req.UserPhone)

	maxStores := req.MaxStores
	if maxStores == 0 {
		maxStores = domain.MaxStoresDefault
	}
	if maxStores < 1 || maxStores > domain.MaxStoresLimit {
		return nil, apperr.Validation(fmt.Sprintf("max_stores must be between 1 and %d", domain.MaxStoresLimit))
	}

	classification := s.classifier.Classify(ctx, query)
	if classification.Intent != intent.IntentOrderProduct {
		return &transport.CreateTicketResponse{
			Status:  "rejected",
			Message: intent.RejectionMessage(classification.Intent),
		}, nil
	}

	t := &repository.Ticket{
		Query:     query,
		Location:  location,
		UserPhone: userPhone,
		UserName:  strings.TrimSpace(req.UserName),
		MaxStores: maxStores,
	}
	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	if err := s.tasks.EnqueuePipeline(ctx, t.ID.String()); err != nil {
		// The row exists but nothing will ever process it; fail it now so the
		// requester is not left polling a dead ticket.
		if _, markErr := s.repo.MarkFailed(ctx, t.ID, "failed to schedule pipeline"); markErr != nil {
			s.log.DatabaseError("mark ticket failed", markErr)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to schedule ticket pipeline", err)
	}

	s.log.WithTicketID(t.ID.String()).Info("ticket created",
		"intent_confidence", classification.Confidence,
		"max_stores", maxStores,
	)

	return &transport.CreateTicketResponse{
		TicketID: t.ID.String(),
		Status:   string(t.Status),
	}, nil
}

// GetStatus returns a snapshot of the ticket assembled from rows only.
func (s *Service) GetStatus(ctx context.Context, ticketID uuid.UUID) (*transport.TicketStatusResponse, error) {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	resp := &transport.TicketStatusResponse{
		TicketID:     t.ID.String(),
		Status:       string(t.Status),
		Query:        t.Query,
		Location:     t.Location,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}

	if product, err := s.repo.GetProduct(ctx, ticketID); err == nil {
		resp.Product = &transport.ProductView{
			Name:           product.Name,
			Category:       product.Category,
			AvgPriceOnline: product.AvgPriceOnline,
		}
	}

	storesFound, err := s.repo.StoreCount(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CallCounts(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if storesFound > 0 || len(counts) > 0 {
		resp.Progress = buildProgress(storesFound, counts)
	}

	return resp, nil
}

// buildProgress recomputes the snapshot counters from rows. Stores show up as
// soon as discovery persists them, before any call exists.
func buildProgress(storesFound int, counts map[domain.CallStatus]int) *transport.CallProgress {
	progress := &transport.CallProgress{StoresFound: storesFound}
	for status, n := range counts {
		progress.CallsTotal += n
		switch {
		case status == domain.CallFailed:
			progress.CallsFailed += n
		case status.IsSettled():
			progress.CallsCompleted += n
		default:
			progress.CallsInProgress += n
		}
	}
	return progress
}

// BookingInput rebuilds the delivery booking input from the confirmed option.
// Implements logistics.InputSource for courier-cancellation rebooking.
func (s *Service) BookingInput(ctx context.Context, ticketID uuid.UUID) (*logistics.BookingInput, error) {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.ConfirmedCallID == nil {
		return nil, apperr.Conflict("ticket has no confirmed option")
	}

	cw, err := s.repo.GetCallWithStore(ctx, ticketID, *t.ConfirmedCallID)
	if err != nil {
		return nil, err
	}

	return s.bookingInput(t, cw), nil
}

func (s *Service) bookingInput(t *repository.Ticket, cw *repository.CallWithStore) *logistics.BookingInput {
	price := 0.0
	if cw.Call.Price != nil {
		price = *cw.Call.Price
	}

	customerName := t.UserName
	if customerName == "" {
		customerName = "Customer"
	}

	productName := cw.Call.MatchedProduct
	if productName == "" {
		productName = t.Query
	}

	return &logistics.BookingInput{
		TicketID:     t.ID,
		StoreCallID:  cw.Call.ID,
		CustomerName: customerName,
		UserPhone:    t.UserPhone,
		DropAddress:  t.Location,
		StoreName:    cw.Store.Name,
		StoreAddress: cw.Store.Address,
		StorePhone:   cw.Store.Phone,
		StoreLat:     cw.Store.Lat,
		StoreLng:     cw.Store.Lng,
		ProductName:  productName,
		ProductPrice: price,
	}
}

// failTicket marks the ticket failed and publishes the terminal event. Safe to
// call twice; only the applying caller publishes.
func (s *Service) failTicket(ctx context.Context, ticketID uuid.UUID, reason string) {
	applied, err := s.repo.MarkFailed(ctx, ticketID, reason)
	if err != nil {
		s.log.DatabaseError("mark ticket failed", err)
		return
	}
	if !applied {
		return
	}

	s.log.WithTicketID(ticketID.String()).Warn("ticket failed", "reason", reason)
	s.bus.Publish(ctx, appevents.TicketFailed{
		BaseEvent: appevents.NewBaseEvent(),
		TicketID:  ticketID,
		Reason:    reason,
	})
}
