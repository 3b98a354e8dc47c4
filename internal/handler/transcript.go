package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// TranscriptService defines the transcript operations the handler needs.
type TranscriptService interface {
	Ingest(ctx context.Context, sessionID string, segments []domain.TranscriptSegment) (*domain.IngestResult, error)
	List(ctx context.Context, sessionID string) ([]domain.TranscriptSegment, error)
}

// TranscriptHandler handles transcript HTTP requests.
type TranscriptHandler struct {
	svc TranscriptService
}

// NewTranscriptHandler creates a transcript handler.
func NewTranscriptHandler(svc TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{svc: svc}
}

type ingestRequest struct {
	SessionID string                     `json:"sessionId"`
	Segments  []domain.TranscriptSegment `json:"segments"`
}

// Ingest handles POST /api/v1/transcripts/bulk. The batch responds 207 with
// a per-segment result list; only batch-level failures (unknown session,
// wrong status, oversized batch) get a single error status.
func (h *TranscriptHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	result, err := h.svc.Ingest(c.Request.Context(), req.SessionID, req.Segments)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusMultiStatus, result)
}

// List handles GET /api/v1/sessions/:id/transcripts.
func (h *TranscriptHandler) List(c *gin.Context) {
	segments, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": c.Param("id"),
		"segments":  segments,
		"count":     len(segments),
	})
}
