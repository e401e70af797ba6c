// Package ticket provides the ticket orchestration bounded context: the REST
// surface, the pipeline stages, and the call-event subscribers.
package ticket

import (
	"github.com/jackc/pgx/v5/pgxpool"

	appevents "dialcart_backend/internal/events"
	apphttp "dialcart_backend/internal/http"
	"dialcart_backend/internal/intent"
	"dialcart_backend/internal/research"
	"dialcart_backend/internal/scheduler"
	"dialcart_backend/internal/stores"
	"dialcart_backend/internal/ticket/handler"
	"dialcart_backend/internal/ticket/repository"
	"dialcart_backend/internal/ticket/service"
	"dialcart_backend/internal/transcript"
	"dialcart_backend/internal/webdeals"
	"dialcart_backend/platform/ai/gemini"
	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"
	"dialcart_backend/platform/validator"
)

// Config is the slice of application configuration this module reads.
type Config interface {
	config.VoiceConfig
	config.MapsConfig
	config.WebDealsConfig
}

// Module is the ticket bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the ticket module with all pipeline leaves wired. It
// subscribes the service to the call lifecycle events on the bus.
func NewModule(
	pool *pgxpool.Pool,
	llm *gemini.Client,
	caller service.CallPlacer,
	booker service.DeliveryBooker,
	tasks scheduler.TaskScheduler,
	bus appevents.Bus,
	cfg Config,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)

	svc := service.New(
		repo,
		intent.New(llm, log),
		research.NewAnalyzer(llm, log),
		research.NewResearcher(llm, log),
		stores.NewFinder(stores.NewPlacesClient(cfg, log), log),
		stores.NewRanker(llm, log),
		caller,
		transcript.New(llm, log),
		webdeals.New(llm, cfg.GetWebDealsTimeout(), log),
		booker,
		tasks,
		bus,
		cfg.GetCallTimeout(),
		cfg.GetCallConcurrency(),
		log,
	)
	svc.Subscribe(bus)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ticket"
}

// Service returns the service layer for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the ticket endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1, ctx.CreateLimiter.Middleware())
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
