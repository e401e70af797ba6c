package voice

import (
	"context"
	"net/http"

	appevents "dialcart_backend/internal/events"
	apphttp "dialcart_backend/internal/http"
	"dialcart_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Deduper drops duplicate webhook deliveries by event id.
type Deduper interface {
	Seen(ctx context.Context, source, eventID string) (bool, error)
	Forget(ctx context.Context, source, eventID string) error
}

const dedupeSource = "voice"

// Module is the voice webhook bounded context implementing http.Module.
type Module struct {
	bus    appevents.Bus
	dedupe Deduper
	secret string
	log    *logger.Logger
}

// NewModule creates the voice webhook module. An empty secret disables the
// shared-secret check (local development).
func NewModule(bus appevents.Bus, dedupe Deduper, webhookSecret string, log *logger.Logger) *Module {
	return &Module{
		bus:    bus,
		dedupe: dedupe,
		secret: webhookSecret,
		log:    log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "voice"
}

// RegisterRoutes mounts the provider callback endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/voice", m.handleWebhook)
}

// handleWebhook processes one provider event delivery. Transitions are applied
// synchronously before the 200 so a handler failure surfaces as a 5xx and the
// provider redelivers; the dedupe record is dropped in that case to let the
// redelivery through.
func (m *Module) handleWebhook(c *gin.Context) {
	if m.secret != "" && c.GetHeader("X-Webhook-Secret") != m.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	var envelope webhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		m.log.Warn("voice webhook invalid JSON", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	msg := envelope.Message
	ctx := c.Request.Context()

	domainEvents := mapEvents(msg)
	if len(domainEvents) == 0 {
		// Unknown shape or event we don't act on. Ack so the provider
		// stops redelivering.
		m.log.Debug("voice webhook ignored", "type", msg.Type, "call_id", msg.Call.ID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	eventID := msg.eventID()
	seen, err := m.dedupe.Seen(ctx, dedupeSource, eventID)
	if err != nil {
		// Dedupe store down: process anyway. Transitions are monotonic, so a
		// duplicate slipping through is a no-op; dropping a first delivery
		// is not.
		m.log.Error("voice webhook dedupe check failed", "error", err)
	} else if seen {
		m.log.WebhookEvent(dedupeSource, msg.Type, eventID)
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	m.log.WebhookEvent(dedupeSource, msg.Type, eventID)

	for _, ev := range domainEvents {
		if err := m.bus.PublishSync(ctx, ev); err != nil {
			m.log.Error("voice event handling failed", "event", ev.EventName(), "error", err)
			_ = m.dedupe.Forget(ctx, dedupeSource, eventID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event handling failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
