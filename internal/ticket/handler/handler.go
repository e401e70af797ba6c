// Package handler exposes the ticket REST surface.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/service"
	"dialcart_backend/internal/ticket/transport"
	"dialcart_backend/platform/httpkit"
	"dialcart_backend/platform/validator"
)

// Handler handles ticket HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a ticket handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the ticket endpoints. create carries the per-IP rate
// limiter because each create fans out into provider calls.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup, createLimiter gin.HandlerFunc) {
	group.POST("/ticket", createLimiter, h.create)
	group.GET("/ticket/:id", h.getStatus)
	group.GET("/ticket/:id/options", h.getOptions)
	group.POST("/ticket/:id/confirm", h.confirm)
}

func (h *Handler) create(c *gin.Context) {
	var req transport.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	// A rejected intent is a final answer, not accepted work.
	if resp.TicketID == "" {
		httpkit.OK(c, resp)
		return
	}

	httpkit.Accepted(c, resp)
}

func (h *Handler) getStatus(c *gin.Context) {
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	resp, err := h.svc.GetStatus(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) getOptions(c *gin.Context) {
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	resp, err := h.svc.GetOptions(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) confirm(c *gin.Context) {
	id, ok := h.ticketID(c)
	if !ok {
		return
	}

	var req transport.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.svc.Confirm(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return uuid.Nil, false
	}
	return id, true
}
