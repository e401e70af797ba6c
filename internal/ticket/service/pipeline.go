package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/platform/logger"
)

// RunPipeline executes the orchestration stages for one ticket: analyze →
// research → find stores → rank → launch calls. It returns when all calls are
// placed; completion is driven by provider webhooks afterwards. Stage failures
// mark the ticket failed instead of erroring the task, because the task is
// enqueued without retries (a replay would dial stores twice).
func (s *Service) RunPipeline(ctx context.Context, ticketID uuid.UUID) error {
	ctx = context.WithValue(ctx, logger.TicketIDKey, ticketID.String())
	log := s.log.WithTicketID(ticketID.String())

	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.Status.IsTerminal() {
		log.Warn("pipeline task for terminal ticket ignored", "status", t.Status)
		return nil
	}

	// Stage: query analysis. Failure is tolerated; research and store search
	// degrade to query-only prompts.
	if _, err := s.repo.AdvanceStatus(ctx, ticketID, domain.StatusAnalyzing); err != nil {
		return err
	}
	log.PipelineStage(ticketID.String(), string(domain.StatusAnalyzing))

	analysis, err := s.analyzer.Analyze(ctx, t.Query, t.Location)
	if err != nil {
		log.Warn("query analysis failed, continuing without it", "error", err)
		analysis = nil
	}

	// Stage: product research. Without a product there is nothing to ask
	// stores about, so failure is terminal.
	if _, err := s.repo.AdvanceStatus(ctx, ticketID, domain.StatusResearching); err != nil {
		return err
	}
	log.PipelineStage(ticketID.String(), string(domain.StatusResearching))

	product, err := s.researcher.Research(ctx, t.Query, analysis)
	if err != nil {
		s.failTicket(ctx, ticketID, fmt.Sprintf("product research failed: %v", err))
		return nil
	}
	if err := s.repo.SaveProduct(ctx, ticketID, product); err != nil {
		s.failTicket(ctx, ticketID, "failed to persist researched product")
		return nil
	}

	// Stage: store discovery.
	if _, err := s.repo.AdvanceStatus(ctx, ticketID, domain.StatusFindingStores); err != nil {
		return err
	}
	log.PipelineStage(ticketID.String(), string(domain.StatusFindingStores))

	candidates, err := s.finder.Find(ctx, product, analysis, t.Location, t.MaxStores)
	if err != nil {
		s.failTicket(ctx, ticketID, fmt.Sprintf("store search failed: %v", err))
		return nil
	}
	if len(candidates) == 0 {
		s.completeWithWebDealsOnly(ctx, ticketID, product.Name)
		return nil
	}

	ranked := s.ranker.Rank(ctx, t.Query, candidates, analysis)

	storeRows, err := s.repo.InsertStores(ctx, ticketID, ranked)
	if err != nil {
		s.failTicket(ctx, ticketID, "failed to persist discovered stores")
		return nil
	}

	// Stage: calls. The web-deal branch runs in parallel on its own task.
	if _, err := s.repo.AdvanceStatus(ctx, ticketID, domain.StatusCallingStores); err != nil {
		return err
	}
	log.PipelineStage(ticketID.String(), string(domain.StatusCallingStores))

	if err := s.tasks.EnqueueWebDeals(ctx, ticketID.String()); err != nil {
		log.Warn("failed to schedule web deal search", "error", err)
	}

	launched := s.launchCalls(ctx, t, product, storeRows)
	if launched == 0 {
		s.failTicket(ctx, ticketID, "no store calls could be placed")
		return nil
	}

	log.Info("store calls launched", "launched", launched, "stores", len(storeRows))
	return nil
}

// RunWebDeals executes the web-deal branch. It is best-effort: a failure logs
// and returns nil so the ticket is unaffected.
func (s *Service) RunWebDeals(ctx context.Context, ticketID uuid.UUID) error {
	ctx = context.WithValue(ctx, logger.TicketIDKey, ticketID.String())
	log := s.log.WithTicketID(ticketID.String())

	product, err := s.repo.GetProduct(ctx, ticketID)
	if err != nil {
		log.Warn("web deal search skipped, no product", "error", err)
		return nil
	}

	result, err := s.deals.Search(ctx, product.Name)
	if err != nil {
		log.Warn("web deal search failed", "error", err)
		return nil
	}

	if err := s.repo.SaveWebDeals(ctx, ticketID, result); err != nil {
		log.DatabaseError("save web deals", err)
		return nil
	}

	log.Info("web deals attached", "deals", len(result.Deals), "status", result.Status)
	return nil
}

// completeWithWebDealsOnly handles the zero-stores path: run the web-deal
// search inline and complete with deals only, or fail when even that comes up
// empty.
func (s *Service) completeWithWebDealsOnly(ctx context.Context, ticketID uuid.UUID, productName string) {
	log := s.log.WithTicketID(ticketID.String())
	log.Info("no callable stores found, trying web deals only")

	result, err := s.deals.Search(ctx, productName)
	if err != nil || len(result.Deals) == 0 {
		s.failTicket(ctx, ticketID, "no callable stores found and no online deals")
		return
	}

	if err := s.repo.SaveWebDeals(ctx, ticketID, result); err != nil {
		log.DatabaseError("save web deals", err)
		s.failTicket(ctx, ticketID, "no callable stores found")
		return
	}

	s.completeTicket(ctx, ticketID)
}
