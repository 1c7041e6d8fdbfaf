package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type ExperimentHandler struct {
	log               *logger.Logger
	experimentService services.ExperimentService
}

func NewExperimentHandler(log *logger.Logger, experimentService services.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{
		log:               log.With("handler", "ExperimentHandler"),
		experimentService: experimentService,
	}
}

// POST /api/v1/experiments
func (h *ExperimentHandler) Enroll(c *gin.Context) {
	var req struct {
		UserID  int64  `json:"user_id" binding:"required"`
		Name    string `json:"name" binding:"required"`
		Variant string `json:"variant" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	exp, err := h.experimentService.Enroll(c.Request.Context(), req.UserID, req.Name, req.Variant)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"experiment": exp})
}

// GET /api/v1/experiments/:experiment_id
func (h *ExperimentHandler) GetByID(c *gin.Context) {
	id, err := pathID(c, "experiment_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	exp, err := h.experimentService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}

// GET /api/v1/users/:user_id/experiments
func (h *ExperimentHandler) ListByUser(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	exps, err := h.experimentService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiments": exps})
}

// POST /api/v1/experiments/:experiment_id/end
func (h *ExperimentHandler) End(c *gin.Context) {
	id, err := pathID(c, "experiment_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	exp, err := h.experimentService.End(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}
