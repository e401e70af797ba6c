package logistics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appevents "dialcart_backend/internal/events"
	apphttp "dialcart_backend/internal/http"
	"dialcart_backend/internal/ticket/domain"
	"dialcart_backend/internal/ticket/transport"
	"dialcart_backend/platform/httpkit"
	"dialcart_backend/platform/logger"
)

// Deduper drops duplicate callback deliveries by event id.
type Deduper interface {
	Seen(ctx context.Context, source, eventID string) (bool, error)
	Forget(ctx context.Context, source, eventID string) error
}

const dedupeSource = "logistics"

// providerStates maps the delivery provider's order states onto ours. States
// not listed here are acked and ignored.
var providerStates = map[string]domain.DeliveryState{
	"Created":             domain.DeliveryOrderPlaced,
	"Pending":             domain.DeliveryOrderPlaced,
	"Searching-for-Agent": domain.DeliveryOrderPlaced,
	"Agent-assigned":      domain.DeliveryAgentAssigned,
	"Order-picked-up":     domain.DeliveryOutForDelivery,
	"Out-for-delivery":    domain.DeliveryOutForDelivery,
	"Order-delivered":     domain.DeliveryDelivered,
	"Delivered":           domain.DeliveryDelivered,
	"Cancelled":           domain.DeliveryFailed,
	"RTO-Initiated":       domain.DeliveryFailed,
	"RTO-Delivered":       domain.DeliveryFailed,
}

// rebookableStates are courier-side failures worth retrying with another
// courier. RTO means the parcel already left the store, so it is not retried.
var rebookableStates = map[string]bool{
	"Cancelled": true,
}

type callbackPayload struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	State         string `json:"order_state"`
	Reason        string `json:"cancellation_reason"`
	TrackingURL   string `json:"tracking_url"`
	EventTime     string `json:"event_time"`
	Rider         struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"rider"`
}

func (p callbackPayload) eventID() string {
	if p.EventTime != "" {
		return fmt.Sprintf("%s:%s:%s", p.OrderID, p.State, p.EventTime)
	}
	return fmt.Sprintf("%s:%s", p.OrderID, p.State)
}

// Module is the logistics bounded context implementing http.Module. It owns
// the provider callback endpoint and the rebook-on-cancellation policy.
type Module struct {
	repo   *Repository
	booker *Booker
	source InputSource
	bus    appevents.Bus
	dedupe Deduper
	log    *logger.Logger
}

// NewModule creates the logistics module. source rebuilds booking input when a
// cancelled order is rebooked.
func NewModule(repo *Repository, booker *Booker, source InputSource, bus appevents.Bus, dedupe Deduper, log *logger.Logger) *Module {
	return &Module{
		repo:   repo,
		booker: booker,
		source: source,
		bus:    bus,
		dedupe: dedupe,
		log:    log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "logistics"
}

// RegisterRoutes mounts the provider callback endpoint and the delivery
// snapshot read.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/logistics", m.handleCallback)
	ctx.V1.GET("/ticket/:id/delivery", m.getDelivery)
}

// getDelivery returns the current (non-superseded) order for a ticket.
func (m *Module) getDelivery(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return
	}

	order, err := m.repo.GetActiveByTicket(c.Request.Context(), ticketID)
	if errors.Is(err, ErrOrderNotFound) {
		httpkit.Error(c, http.StatusNotFound, "no delivery order for ticket", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.DeliveryResponse{
		TicketID:      order.TicketID.String(),
		OrderID:       order.ID.String(),
		State:         string(order.State),
		CourierName:   order.CourierName,
		RiderName:     order.RiderName,
		RiderPhone:    order.RiderPhone,
		TrackingURL:   order.TrackingURL,
		FailureReason: order.FailureReason,
		Attempt:       order.Attempt,
		UpdatedAt:     order.UpdatedAt,
	})
}

// handleCallback applies one provider state callback. The repository's prior
// state guard makes duplicates and out-of-order deliveries no-ops, so a
// callback that does not apply is still acked.
func (m *Module) handleCallback(c *gin.Context) {
	var payload callbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		m.log.Warn("logistics callback invalid JSON", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	ctx := c.Request.Context()
	providerState := strings.TrimSpace(payload.State)

	next, known := providerStates[providerState]
	if !known || payload.OrderID == "" {
		m.log.Debug("logistics callback ignored", "state", providerState, "order_id", payload.OrderID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	eventID := payload.eventID()
	seen, err := m.dedupe.Seen(ctx, dedupeSource, eventID)
	if err != nil {
		// Dedupe store down: process anyway, the state guard absorbs repeats.
		m.log.Error("logistics callback dedupe check failed", "error", err)
	} else if seen {
		m.log.WebhookEvent(dedupeSource, providerState, eventID)
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	m.log.WebhookEvent(dedupeSource, providerState, eventID)

	order, applied, err := m.repo.UpdateStateByProviderOrderID(ctx, payload.OrderID, next, RiderInfo{
		RiderName:   payload.Rider.Name,
		RiderPhone:  payload.Rider.Phone,
		TrackingURL: payload.TrackingURL,
		Reason:      payload.Reason,
	})
	if err != nil {
		m.log.DatabaseError("apply delivery callback", err)
		_ = m.dedupe.Forget(ctx, dedupeSource, eventID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback handling failed"})
		return
	}
	if !applied {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	m.bus.Publish(ctx, appevents.DeliveryStateChanged{
		BaseEvent: appevents.NewBaseEvent(),
		TicketID:  order.TicketID,
		OrderID:   order.ID,
		State:     string(next),
	})

	if next == domain.DeliveryFailed && rebookableStates[providerState] && !order.Superseded {
		m.rebookAsync(ctx, order.TicketID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// rebookAsync retries delivery with another courier off the request path. The
// callback is acked regardless; a rebook failure leaves the order failed.
func (m *Module) rebookAsync(ctx context.Context, ticketID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		order, err := m.booker.Rebook(ctx, ticketID, m.source)
		if err != nil {
			m.log.Error("delivery rebook failed",
				"ticket_id", ticketID.String(),
				"error", err,
			)
			return
		}

		m.bus.Publish(ctx, appevents.DeliveryStateChanged{
			BaseEvent: appevents.NewBaseEvent(),
			TicketID:  ticketID,
			OrderID:   order.ID,
			State:     string(order.State),
		})
	}()
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
