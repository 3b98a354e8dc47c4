package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/session"
)

// SessionService defines the session lifecycle operations the handler needs.
type SessionService interface {
	Create(ctx context.Context, req *session.CreateRequest) (*domain.InterviewSession, bool, error)
	Get(ctx context.Context, id string) (*domain.InterviewSession, error)
	Provision(ctx context.Context, roomName, identity, displayName string) (*domain.InterviewSession, *domain.Credential, error)
	Start(ctx context.Context, roomName string) (*domain.InterviewSession, error)
	End(ctx context.Context, roomName string, req *session.EndRequest) (*domain.InterviewSession, error)
	Cancel(ctx context.Context, id, reason string) (*domain.InterviewSession, error)
}

// SessionHandler handles session lifecycle HTTP requests.
type SessionHandler struct {
	svc SessionService
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req session.CreateRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	s, created, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, s)
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type provisionRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
}

type provisionResponse struct {
	Session    *domain.InterviewSession `json:"session"`
	Credential *domain.Credential       `json:"credential"`
}

// Provision handles POST /api/v1/rooms/:room/provision. It creates the
// provider room when needed and always returns a fresh join credential.
func (h *SessionHandler) Provision(c *gin.Context) {
	var req provisionRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	s, cred, err := h.svc.Provision(c.Request.Context(), c.Param("room"), req.Identity, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, provisionResponse{Session: s, Credential: cred})
}

// Start handles POST /api/v1/rooms/:room/start.
func (h *SessionHandler) Start(c *gin.Context) {
	s, err := h.svc.Start(c.Request.Context(), c.Param("room"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// End handles POST /api/v1/rooms/:room/end.
func (h *SessionHandler) End(c *gin.Context) {
	var req session.EndRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	s, err := h.svc.End(c.Request.Context(), c.Param("room"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/v1/sessions/:id/cancel.
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	s, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
