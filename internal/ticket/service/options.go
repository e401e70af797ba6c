package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/ticket/transport"
	"dialcart_backend/platform/apperr"
)

// optionRow pairs an analyzed, available call with its store for ranking.
type optionRow struct {
	call  repository.StoreCall
	store repository.Store
}

// buildOptions selects the confirmable calls and orders them: match tier
// (exact > alternative > none), then ascending price, then descending rating,
// then discovery priority. The ordering is deterministic so repeated reads
// rank identically.
func buildOptions(calls []repository.CallWithStore) []optionRow {
	var rows []optionRow
	for _, cw := range calls {
		if cw.Call.Status != domain.CallAnalyzed {
			continue
		}
		if cw.Call.Available == nil || !*cw.Call.Available {
			continue
		}
		rows = append(rows, optionRow{call: cw.Call, store: cw.Store})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]

		if ra, rb := a.call.MatchType.Rank(), b.call.MatchType.Rank(); ra != rb {
			return ra < rb
		}
		if pa, pb := priceOrInf(a.call.Price), priceOrInf(b.call.Price); pa != pb {
			return pa < pb
		}
		if a.store.Rating != b.store.Rating {
			return a.store.Rating > b.store.Rating
		}
		return a.store.CallPriority < b.store.CallPriority
	})

	return rows
}

// priceOrInf ranks options with no reported price after every priced one.
func priceOrInf(p *float64) float64 {
	if p == nil || *p <= 0 {
		return math.Inf(1)
	}
	return *p
}

func toTransportOptions(rows []optionRow) []transport.Option {
	out := make([]transport.Option, 0, len(rows))
	for _, r := range rows {
		opt := transport.Option{
			StoreCallID:       r.call.ID.String(),
			StoreName:         r.store.Name,
			StoreAddress:      r.store.Address,
			StorePhone:        r.store.Phone,
			Rating:            r.store.Rating,
			MatchedProduct:    r.call.MatchedProduct,
			MatchType:         string(r.call.MatchType),
			DeliveryAvailable: r.call.DeliveryAvailable,
			DeliveryETA:       r.call.DeliveryETA,
			DeliveryCharge:    r.call.DeliveryCharge,
			Summary:           r.call.Notes,
		}
		if r.call.Price != nil {
			opt.Price = *r.call.Price
		}
		out = append(out, opt)
	}
	return out
}

// GetOptions returns the ranked, confirmable options for a completed ticket.
func (s *Service) GetOptions(ctx context.Context, ticketID uuid.UUID) (*transport.OptionsResponse, error) {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusCompleted {
		return nil, apperr.Conflict("ticket is not completed yet")
	}

	calls, err := s.repo.ListCallsWithStores(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	rows := buildOptions(calls)

	deals, err := s.repo.GetWebDeals(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	dealCount := 0
	if deals != nil {
		dealCount = len(deals.Deals)
	}

	return &transport.OptionsResponse{
		TicketID: t.ID.String(),
		Status:   string(t.Status),
		Message:  composeMessage(rows, dealCount),
		Options:  toTransportOptions(rows),
		WebDeals: deals,
	}, nil
}

// Confirm records the requester's choice and books delivery synchronously.
// The conditional update on the ticket makes confirm single-use.
func (s *Service) Confirm(ctx context.Context, ticketID uuid.UUID, req transport.ConfirmRequest) (*transport.ConfirmResponse, error) {
	callID, err := uuid.Parse(req.StoreCallID)
	if err != nil {
		return nil, apperr.Validation("store_call_id is not a valid id")
	}

	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusCompleted {
		return nil, apperr.Conflict("ticket is not completed yet")
	}

	cw, err := s.repo.GetCallWithStore(ctx, ticketID, callID)
	if err != nil {
		return nil, err
	}
	if cw.Call.Status != domain.CallAnalyzed || cw.Call.Available == nil || !*cw.Call.Available {
		return nil, apperr.Validation("selected option did not report the product available")
	}

	applied, err := s.repo.ConfirmCall(ctx, ticketID, callID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.Conflict("ticket already has a confirmed option")
	}

	input := s.bookingInput(t, cw)
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		input.CustomerName = name
	}

	order, err := s.booker.Book(ctx, input)
	if err != nil {
		return nil, err
	}

	return &transport.ConfirmResponse{
		TicketID:    ticketID.String(),
		OrderID:     order.ID.String(),
		State:       string(order.State),
		CourierName: order.CourierName,
		QuotedPrice: order.Price,
		TrackingURL: order.TrackingURL,
	}, nil
}
