package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type RecommendationHandler struct {
	log    *logger.Logger
	recSvc services.RecommendationService
}

func NewRecommendationHandler(log *logger.Logger, recSvc services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		log:    log.With("handler", "RecommendationHandler"),
		recSvc: recSvc,
	}
}

// POST /api/v1/recommendations/next
func (h *RecommendationHandler) Next(c *gin.Context) {
	var req struct {
		UserID             int64   `json:"user_id" binding:"required"`
		DialogID           *int64  `json:"dialog_id"`
		TopicFocus         *string `json:"topic_focus"`
		OverrideDifficulty *string `json:"override_difficulty"`
		OverrideFormat     *string `json:"override_format"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.recSvc.Next(c.Request.Context(), services.RecommendationRequest{
		UserID:             req.UserID,
		DialogID:           req.DialogID,
		TopicFocus:         req.TopicFocus,
		OverrideDifficulty: req.OverrideDifficulty,
		OverrideFormat:     req.OverrideFormat,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"recommendation": result})
}

// POST /api/v1/recommendations/cold-start
func (h *RecommendationHandler) ColdStart(c *gin.Context) {
	var req struct {
		UserID int64   `json:"user_id" binding:"required"`
		Topic  *string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.recSvc.ColdStart(c.Request.Context(), req.UserID, req.Topic)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"recommendation": result})
}

// GET /api/v1/users/:user_id/recommendations
func (h *RecommendationHandler) History(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := parseID(raw); err == nil {
			limit = int(parsed)
		}
	}

	entries, err := h.recSvc.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": entries})
}

// GET /api/v1/recommendations/strategy
func (h *RecommendationHandler) Strategy(c *gin.Context) {
	RespondOK(c, gin.H{"strategy": h.recSvc.Strategy()})
}

// PUT /api/v1/recommendations/strategy
func (h *RecommendationHandler) SetStrategy(c *gin.Context) {
	var req struct {
		Strategy string `json:"strategy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.recSvc.SetStrategy(req.Strategy); err != nil {
		RespondError(c, http.StatusBadRequest, "unknown_strategy", err)
		return
	}
	RespondOK(c, gin.H{"strategy": h.recSvc.Strategy()})
}
