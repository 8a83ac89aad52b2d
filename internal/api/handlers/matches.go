package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/matching"
	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/storage"
	"github.com/your-org/reclaim/pkg/dto"
)

type MatchHandler struct {
	db        *storage.PostgresStore
	lifecycle *matching.Lifecycle
	feedback  *matching.FeedbackLoop
}

func NewMatchHandler(db *storage.PostgresStore, lifecycle *matching.Lifecycle, feedback *matching.FeedbackLoop) *MatchHandler {
	return &MatchHandler{db: db, lifecycle: lifecycle, feedback: feedback}
}

func (h *MatchHandler) ListByCase(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	matches, err := h.db.ListMatchesByCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.MatchListResponse{Matches: make([]dto.MatchResponse, 0, len(matches))}
	for i := range matches {
		resp.Matches = append(resp.Matches, MatchToResponse(&matches[i]))
	}
	resp.Total = len(resp.Matches)
	c.JSON(http.StatusOK, resp)
}

func (h *MatchHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	m, err := h.db.GetMatch(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	c.JSON(http.StatusOK, MatchToResponse(m))
}

// Notified records delivery of the match to one side. The first
// acknowledged side moves the match out of pending.
func (h *MatchHandler) Notified(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	var req dto.NotifiedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.lifecycle.MarkNotified(c.Request.Context(), id, models.MatchSide(req.Side))
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MatchToResponse(m))
}

func (h *MatchHandler) Viewed(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	m, err := h.lifecycle.MarkViewed(c.Request.Context(), id)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MatchToResponse(m))
}

func (h *MatchHandler) Feedback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reasons := make([]models.RejectReason, 0, len(req.Reasons))
	for _, r := range req.Reasons {
		reasons = append(reasons, models.RejectReason(r))
	}

	m, err := h.feedback.Submit(c.Request.Context(), id,
		models.MatchSide(req.Side), models.Verdict(req.Verdict), reasons, req.Detail)
	if err != nil {
		var verr *matching.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MatchToResponse(m))
}

func writeLifecycleError(c *gin.Context, err error) {
	var terr *matching.InvalidTransitionError
	switch {
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{"error": terr.Error()})
	case errors.Is(err, storage.ErrMatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// MatchToResponse maps a stored match to its API shape. Shared with the
// WebSocket hub so both paths emit identical payloads.
func MatchToResponse(m *models.PhotoMatch) dto.MatchResponse {
	resp := dto.MatchResponse{
		ID:            m.ID,
		SourcePhotoID: m.SourcePhotoID,
		SourceCaseID:  m.SourceCaseID,
		TargetPhotoID: m.TargetPhotoID,
		TargetCaseID:  m.TargetCaseID,

		OverallScore:       m.OverallScore,
		Scores:             m.Scores,
		MatchType:          string(m.MatchType),
		Details:            m.Details,
		MatchedIdentifiers: m.MatchedIdentifiers,
		LocationScore:      m.LocationScore,
		DistanceKM:         m.DistanceKM,

		Status:         string(m.Status),
		SourceNotified: m.SourceNotified,
		TargetNotified: m.TargetNotified,

		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.NotifiedAt != nil {
		resp.NotifiedAt = m.NotifiedAt.Format(time.RFC3339)
	}
	if m.ViewedAt != nil {
		resp.ViewedAt = m.ViewedAt.Format(time.RFC3339)
	}
	if m.ResolvedAt != nil {
		resp.ResolvedAt = m.ResolvedAt.Format(time.RFC3339)
	}
	if m.SourceFeedback.Verdict != "" {
		fb := m.SourceFeedback
		resp.SourceFeedback = &fb
	}
	if m.TargetFeedback.Verdict != "" {
		fb := m.TargetFeedback
		resp.TargetFeedback = &fb
	}
	return resp
}
