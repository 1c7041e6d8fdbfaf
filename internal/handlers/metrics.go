package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type MetricsHandler struct {
	log            *logger.Logger
	metricsService services.MetricsService
}

func NewMetricsHandler(log *logger.Logger, metricsService services.MetricsService) *MetricsHandler {
	return &MetricsHandler{
		log:            log.With("handler", "MetricsHandler"),
		metricsService: metricsService,
	}
}

// POST /api/v1/metrics/process
// Runs the metrics pipeline for a single stored message.
func (h *MetricsHandler) Process(c *gin.Context) {
	var req struct {
		MessageID int64 `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	record, err := h.metricsService.ProcessMessage(c.Request.Context(), req.MessageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"metrics": record})
}

// POST /api/v1/metrics/reprocess
// Recomputes stored metric rows for a batch of messages. Per-message
// failures are reported, not fatal.
func (h *MetricsHandler) Reprocess(c *gin.Context) {
	var req struct {
		MessageIDs []int64 `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result := h.metricsService.ReprocessBatch(c.Request.Context(), req.MessageIDs)
	RespondOK(c, gin.H{"result": result})
}

// GET /api/v1/metrics/:metric_id
func (h *MetricsHandler) GetByID(c *gin.Context) {
	id, err := pathID(c, "metric_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	row, err := h.metricsService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"metric": row})
}

// GET /api/v1/users/:user_id/metrics
func (h *MetricsHandler) ListByUser(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	offset, limit := pagination(c)
	rows, err := h.metricsService.ListByUser(c.Request.Context(), userID, offset, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"metrics": rows})
}

// GET /api/v1/messages/:message_id/metrics
func (h *MetricsHandler) ListByMessage(c *gin.Context) {
	messageID, err := pathID(c, "message_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	rows, err := h.metricsService.ListByMessage(c.Request.Context(), messageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"metrics": rows})
}
