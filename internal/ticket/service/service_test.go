package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"dialcart_backend/internal/logistics"
	"dialcart_backend/internal/research"
	"dialcart_backend/internal/stores"
	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/ticket/transport"
	"dialcart_backend/internal/transcript"
	"dialcart_backend/internal/webdeals"
	"dialcart_backend/platform/apperr"
	"dialcart_backend/platform/logger"
)

// fakeRepo is an in-memory Repo for exercising the service without a database.
// Only the paths under test carry state; the rest are benign defaults.
type fakeRepo struct {
	ticket     *repository.Ticket
	created    []*repository.Ticket
	callWith   *repository.CallWithStore
	confirmed  bool
	storeCount int
	callCounts map[domain.CallStatus]int
}

var _ Repo = (*fakeRepo)(nil)

func (f *fakeRepo) CreateTicket(ctx context.Context, t *repository.Ticket) error {
	t.ID = uuid.New()
	t.Status = domain.StatusReceived
	f.created = append(f.created, t)
	return nil
}

func (f *fakeRepo) GetTicket(ctx context.Context, id uuid.UUID) (*repository.Ticket, error) {
	if f.ticket == nil || f.ticket.ID != id {
		return nil, apperr.NotFound("ticket not found")
	}
	return f.ticket, nil
}

func (f *fakeRepo) AdvanceStatus(ctx context.Context, id uuid.UUID, next domain.TicketStatus) (bool, error) {
	return true, nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return true, nil
}

func (f *fakeRepo) CompleteTicket(ctx context.Context, id uuid.UUID, finalResult []byte) (bool, error) {
	return true, nil
}

func (f *fakeRepo) ConfirmCall(ctx context.Context, ticketID, callID uuid.UUID) (bool, error) {
	if f.confirmed {
		return false, nil
	}
	f.confirmed = true
	return true, nil
}

func (f *fakeRepo) SaveProduct(ctx context.Context, ticketID uuid.UUID, p *research.Product) error {
	return nil
}

func (f *fakeRepo) GetProduct(ctx context.Context, ticketID uuid.UUID) (*research.Product, error) {
	return nil, apperr.NotFound("product not found for ticket")
}

func (f *fakeRepo) InsertStores(ctx context.Context, ticketID uuid.UUID, candidates []stores.Candidate) ([]repository.Store, error) {
	return nil, nil
}

func (f *fakeRepo) StoreCount(ctx context.Context, ticketID uuid.UUID) (int, error) {
	return f.storeCount, nil
}

func (f *fakeRepo) CreateCall(ctx context.Context, ticketID, storeID uuid.UUID) (*repository.StoreCall, error) {
	return &repository.StoreCall{ID: uuid.New(), TicketID: ticketID, StoreID: storeID, Status: domain.CallQueued}, nil
}

func (f *fakeRepo) SetProviderCallID(ctx context.Context, callID uuid.UUID, providerCallID string) error {
	return nil
}

func (f *fakeRepo) UpdateCallStatus(ctx context.Context, callID uuid.UUID, next domain.CallStatus) (bool, error) {
	return true, nil
}

func (f *fakeRepo) UpdateCallStatusByProviderID(ctx context.Context, providerCallID string, next domain.CallStatus) (*repository.StoreCall, bool, error) {
	return nil, false, nil
}

func (f *fakeRepo) GetCallByProviderID(ctx context.Context, providerCallID string) (*repository.StoreCall, error) {
	return nil, apperr.NotFound("store call not found")
}

func (f *fakeRepo) SaveTranscript(ctx context.Context, callID uuid.UUID, transcriptText string) error {
	return nil
}

func (f *fakeRepo) SaveAnalysis(ctx context.Context, callID uuid.UUID, a transcript.Analysis, next domain.CallStatus) (bool, error) {
	return true, nil
}

func (f *fakeRepo) PendingCallCount(ctx context.Context, ticketID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeRepo) CallCounts(ctx context.Context, ticketID uuid.UUID) (map[domain.CallStatus]int, error) {
	return f.callCounts, nil
}

func (f *fakeRepo) ListCallsWithStores(ctx context.Context, ticketID uuid.UUID) ([]repository.CallWithStore, error) {
	if f.callWith == nil {
		return nil, nil
	}
	return []repository.CallWithStore{*f.callWith}, nil
}

func (f *fakeRepo) GetCallWithStore(ctx context.Context, ticketID, callID uuid.UUID) (*repository.CallWithStore, error) {
	if f.callWith == nil || f.callWith.Call.ID != callID {
		return nil, apperr.NotFound("store call not found for ticket")
	}
	return f.callWith, nil
}

func (f *fakeRepo) SaveWebDeals(ctx context.Context, ticketID uuid.UUID, result *webdeals.Result) error {
	return nil
}

func (f *fakeRepo) GetWebDeals(ctx context.Context, ticketID uuid.UUID) (*webdeals.Result, error) {
	return nil, nil
}

type fakeBooker struct {
	books int
}

func (f *fakeBooker) Book(ctx context.Context, input *logistics.BookingInput) (*logistics.Order, error) {
	f.books++
	return &logistics.Order{
		ID:       uuid.New(),
		TicketID: input.TicketID,
		State:    domain.DeliveryOrderPlaced,
	}, nil
}

func newTestService(repo *fakeRepo, booker *fakeBooker) *Service {
	return &Service{
		repo:   repo,
		booker: booker,
		log:    logger.New("test"),
	}
}

func TestCreateRejectsUndialablePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "not-a-phone"},
		{"too short", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc := newTestService(repo, &fakeBooker{})

			_, err := svc.Create(context.Background(), transport.CreateTicketRequest{
				Query:     "wireless mouse",
				Location:  "Indiranagar, Bengaluru",
				UserPhone: tt.phone,
			})
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if len(repo.created) != 0 {
				t.Errorf("tickets persisted = %d, want 0", len(repo.created))
			}
		})
	}
}

func TestConfirmIsSingleUse(t *testing.T) {
	ticketID := uuid.New()
	available := true
	cw := &repository.CallWithStore{
		Call: repository.StoreCall{
			ID:        uuid.New(),
			TicketID:  ticketID,
			Status:    domain.CallAnalyzed,
			Available: &available,
			MatchType: domain.MatchExact,
		},
		Store: repository.Store{ID: uuid.New(), TicketID: ticketID, Name: "City Electronics"},
	}
	repo := &fakeRepo{
		ticket: &repository.Ticket{
			ID:        ticketID,
			Query:     "wireless mouse",
			Location:  "Indiranagar, Bengaluru",
			UserPhone: "+919876543210",
			Status:    domain.StatusCompleted,
		},
		callWith: cw,
	}
	booker := &fakeBooker{}
	svc := newTestService(repo, booker)

	req := transport.ConfirmRequest{StoreCallID: cw.Call.ID.String()}
	if _, err := svc.Confirm(context.Background(), ticketID, req); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	_, err := svc.Confirm(context.Background(), ticketID, req)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second confirm err = %v, want conflict", err)
	}
	if booker.books != 1 {
		t.Errorf("bookings = %d, want exactly 1", booker.books)
	}
}

func TestStatusProgressDuringStoreDiscovery(t *testing.T) {
	ticketID := uuid.New()
	repo := &fakeRepo{
		ticket: &repository.Ticket{
			ID:       ticketID,
			Query:    "wireless mouse",
			Location: "Indiranagar, Bengaluru",
			Status:   domain.StatusFindingStores,
		},
		storeCount: 4,
	}
	svc := newTestService(repo, &fakeBooker{})

	resp, err := svc.GetStatus(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if resp.Progress == nil {
		t.Fatal("progress missing while stores exist")
	}
	if resp.Progress.StoresFound != 4 {
		t.Errorf("stores_found = %d, want 4", resp.Progress.StoresFound)
	}
	if resp.Progress.CallsTotal != 0 {
		t.Errorf("calls_total = %d, want 0 before calls launch", resp.Progress.CallsTotal)
	}
}

func TestStatusProgressCounters(t *testing.T) {
	ticketID := uuid.New()
	repo := &fakeRepo{
		ticket: &repository.Ticket{
			ID:       ticketID,
			Query:    "wireless mouse",
			Location: "Indiranagar, Bengaluru",
			Status:   domain.StatusCallingStores,
		},
		storeCount: 4,
		callCounts: map[domain.CallStatus]int{
			domain.CallAnalyzed:   1,
			domain.CallCompleted:  1,
			domain.CallInProgress: 1,
			domain.CallFailed:     1,
		},
	}
	svc := newTestService(repo, &fakeBooker{})

	resp, err := svc.GetStatus(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}

	p := resp.Progress
	if p == nil {
		t.Fatal("progress missing")
	}
	if p.StoresFound != 4 || p.CallsTotal != 4 {
		t.Errorf("stores_found/calls_total = %d/%d, want 4/4", p.StoresFound, p.CallsTotal)
	}
	if p.CallsCompleted != 2 || p.CallsInProgress != 1 || p.CallsFailed != 1 {
		t.Errorf("completed/in_progress/failed = %d/%d/%d, want 2/1/1",
			p.CallsCompleted, p.CallsInProgress, p.CallsFailed)
	}
	if p.CallsCompleted > p.CallsTotal {
		t.Error("calls_completed must never exceed calls_total")
	}
}
