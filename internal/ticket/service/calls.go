package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dialcart_backend/internal/research"
	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/voice"

	appevents "dialcart_backend/internal/events"
)

// launchCalls places one call per store through the global concurrency ceiling
// and schedules a timeout watchdog for each. Returns how many calls were
// placed; a store whose call cannot be placed gets a failed call row.
func (s *Service) launchCalls(ctx context.Context, t *repository.Ticket, product *research.Product, storeRows []repository.Store) int {
	log := s.log.WithTicketID(t.ID.String())

	var g errgroup.Group
	var launched atomic.Int32

	for _, store := range storeRows {
		g.Go(func() error {
			call, err := s.repo.CreateCall(ctx, t.ID, store.ID)
			if err != nil {
				log.DatabaseError("create store call", err)
				return nil
			}

			if err := s.callSlots.Acquire(ctx, 1); err != nil {
				s.markCallFailed(ctx, call.ID)
				return nil
			}
			providerCallID, err := s.caller.PlaceStoreCall(ctx, voice.StoreCallRequest{
				StorePhone: store.Phone,
				StoreName:  store.Name,
				Location:   t.Location,
				Product:    product,
			})
			s.callSlots.Release(1)

			if err != nil {
				log.Warn("failed to place store call", "store", store.Name, "error", err)
				s.markCallFailed(ctx, call.ID)
				return nil
			}

			if err := s.repo.SetProviderCallID(ctx, call.ID, providerCallID); err != nil {
				log.DatabaseError("attach provider call id", err)
			}
			if err := s.tasks.ScheduleCallTimeout(ctx, t.ID.String(), call.ID.String(), s.callTimeout); err != nil {
				log.Warn("failed to schedule call watchdog", "call_id", call.ID.String(), "error", err)
			}

			launched.Add(1)
			return nil
		})
	}

	_ = g.Wait()
	return int(launched.Load())
}

func (s *Service) markCallFailed(ctx context.Context, callID uuid.UUID) {
	if _, err := s.repo.UpdateCallStatus(ctx, callID, domain.CallFailed); err != nil {
		s.log.DatabaseError("mark store call failed", err)
	}
}

// Subscribe wires the service to the voice call lifecycle events. Handler
// errors propagate to the webhook response so the provider redelivers.
func (s *Service) Subscribe(bus appevents.Bus) {
	bus.Subscribe(appevents.CallStarted{}.EventName(), appevents.HandlerFunc(s.onCallStarted))
	bus.Subscribe(appevents.CallEnded{}.EventName(), appevents.HandlerFunc(s.onCallEnded))
	bus.Subscribe(appevents.CallTranscriptReady{}.EventName(), appevents.HandlerFunc(s.onTranscript))
}

func (s *Service) onCallStarted(ctx context.Context, event appevents.Event) error {
	ev, ok := event.(appevents.CallStarted)
	if !ok {
		return nil
	}

	next := domain.CallStatus(ev.Status)
	if next != domain.CallDialing && next != domain.CallInProgress {
		return nil
	}

	_, _, err := s.repo.UpdateCallStatusByProviderID(ctx, ev.ProviderCallID, next)
	return err
}

func (s *Service) onCallEnded(ctx context.Context, event appevents.Event) error {
	ev, ok := event.(appevents.CallEnded)
	if !ok {
		return nil
	}

	next := domain.CallCompleted
	if !ev.Succeeded {
		next = domain.CallFailed
	}

	call, applied, err := s.repo.UpdateCallStatusByProviderID(ctx, ev.ProviderCallID, next)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	// A successful end still awaits the transcript event, which follows in the
	// same delivery; the completion check runs after its analysis instead.
	if next == domain.CallFailed {
		return s.checkCompletion(ctx, call.TicketID)
	}
	return nil
}

func (s *Service) onTranscript(ctx context.Context, event appevents.Event) error {
	ev, ok := event.(appevents.CallTranscriptReady)
	if !ok {
		return nil
	}

	call, err := s.repo.GetCallByProviderID(ctx, ev.ProviderCallID)
	if err != nil {
		return err
	}
	if call.Status.IsTerminal() {
		return nil
	}

	if err := s.repo.SaveTranscript(ctx, call.ID, ev.Transcript); err != nil {
		return err
	}

	product, err := s.repo.GetProduct(ctx, call.TicketID)
	if err != nil {
		product = nil
	}

	analysis, ok := s.transcripts.Analyze(ctx, product, ev.Transcript)
	next := domain.CallAnalyzed
	if !ok {
		next = domain.CallUnanalyzable
	}

	applied, err := s.repo.SaveAnalysis(ctx, call.ID, analysis, next)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	return s.checkCompletion(ctx, call.TicketID)
}

// EnforceCallTimeout is the watchdog: a call still unsettled at its deadline
// is forced to failed. Guarded, so firing on a settled call is a no-op, and
// asynq retries of the watchdog task are safe.
func (s *Service) EnforceCallTimeout(ctx context.Context, ticketID, storeCallID uuid.UUID) error {
	applied, err := s.repo.UpdateCallStatus(ctx, storeCallID, domain.CallFailed)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.log.WithTicketID(ticketID.String()).Warn("store call timed out", "call_id", storeCallID.String())
	return s.checkCompletion(ctx, ticketID)
}

// checkCompletion completes the ticket once no call is pending. The guarded
// ticket update makes concurrent checks race-safe: only one compiles the
// result and publishes.
func (s *Service) checkCompletion(ctx context.Context, ticketID uuid.UUID) error {
	pending, err := s.repo.PendingCallCount(ctx, ticketID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusCallingStores {
		return nil
	}

	s.completeTicket(ctx, ticketID)
	return nil
}

// finalResult is the compiled summary stored on the completed ticket.
type finalResult struct {
	Message      string `json:"message"`
	OptionCount  int    `json:"option_count"`
	WebDealCount int    `json:"web_deal_count"`
}

func (s *Service) completeTicket(ctx context.Context, ticketID uuid.UUID) {
	log := s.log.WithTicketID(ticketID.String())

	calls, err := s.repo.ListCallsWithStores(ctx, ticketID)
	if err != nil {
		log.DatabaseError("list calls for completion", err)
		return
	}
	options := buildOptions(calls)

	dealCount := 0
	if deals, err := s.repo.GetWebDeals(ctx, ticketID); err == nil && deals != nil {
		dealCount = len(deals.Deals)
	}

	raw, err := json.Marshal(finalResult{
		Message:      composeMessage(options, dealCount),
		OptionCount:  len(options),
		WebDealCount: dealCount,
	})
	if err != nil {
		log.Error("failed to compile final result", "error", err)
		return
	}

	applied, err := s.repo.CompleteTicket(ctx, ticketID, raw)
	if err != nil {
		log.DatabaseError("complete ticket", err)
		return
	}
	if !applied {
		return
	}

	log.Info("ticket completed", "options", len(options), "web_deals", dealCount)
	s.bus.Publish(ctx, appevents.TicketCompleted{
		BaseEvent:    appevents.NewBaseEvent(),
		TicketID:     ticketID,
		OptionCount:  len(options),
		WebDealCount: dealCount,
	})
}

// composeMessage builds the human summary from structured fields.
func composeMessage(options []optionRow, dealCount int) string {
	switch {
	case len(options) > 0:
		best := options[0]
		msg := fmt.Sprintf("%d store(s) have the product or an alternative. Best option: %s", len(options), best.store.Name)
		if best.call.Price != nil {
			msg += fmt.Sprintf(" at ₹%.0f", *best.call.Price)
		}
		if dealCount > 0 {
			msg += fmt.Sprintf(". %d online deal(s) also found.", dealCount)
		}
		return msg
	case dealCount > 0:
		return fmt.Sprintf("No nearby store had the product, but %d online deal(s) were found.", dealCount)
	default:
		return "No store reported the product available and no online deals were found."
	}
}
