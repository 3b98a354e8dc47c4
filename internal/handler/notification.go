package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// NotificationService defines the notification operations the handler needs.
type NotificationService interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.NotificationRecord, error)
	HandleDeliveryReceipt(ctx context.Context, providerMessageID string) error
	Stats(ctx context.Context) (*domain.NotificationStats, error)
}

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	svc NotificationService
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// ListBySession handles GET /api/v1/sessions/:id/notifications.
func (h *NotificationHandler) ListBySession(c *gin.Context) {
	records, err := h.svc.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":     c.Param("id"),
		"notifications": records,
		"count":         len(records),
	})
}

type deliveryCallback struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// DeliveryCallback handles POST /api/v1/callbacks/messaging, the provider's
// delivery receipt webhook. Receipts for unknown or already-delivered
// messages are acknowledged without effect so the provider stops retrying.
func (h *NotificationHandler) DeliveryCallback(c *gin.Context) {
	var cb deliveryCallback
	if bindErr := c.ShouldBindJSON(&cb); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	err := h.svc.HandleDeliveryReceipt(c.Request.Context(), cb.MessageID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "delivered"})
	case isNotFound(err):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		respondError(c, err)
	}
}

// Stats handles GET /api/v1/notifications/stats.
func (h *NotificationHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
