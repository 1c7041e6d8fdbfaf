package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type DialogHandler struct {
	log           *logger.Logger
	dialogService services.DialogService
}

func NewDialogHandler(log *logger.Logger, dialogService services.DialogService) *DialogHandler {
	return &DialogHandler{
		log:           log.With("handler", "DialogHandler"),
		dialogService: dialogService,
	}
}

// POST /api/v1/dialogs
func (h *DialogHandler) Create(c *gin.Context) {
	var req struct {
		UserID     int64   `json:"user_id" binding:"required"`
		DialogType string  `json:"dialog_type"`
		Topic      *string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	dialog, err := h.dialogService.Create(c.Request.Context(), req.UserID, req.DialogType, req.Topic)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"dialog": dialog})
}

// GET /api/v1/dialogs/:dialog_id
func (h *DialogHandler) GetByID(c *gin.Context) {
	id, err := pathID(c, "dialog_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	dialog, err := h.dialogService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"dialog": dialog})
}

// GET /api/v1/users/:user_id/dialogs
func (h *DialogHandler) ListByUser(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	offset, limit := pagination(c)
	dialogs, err := h.dialogService.ListByUser(c.Request.Context(), userID, offset, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"dialogs": dialogs})
}

// POST /api/v1/dialogs/:dialog_id/end
func (h *DialogHandler) End(c *gin.Context) {
	id, err := pathID(c, "dialog_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	dialog, err := h.dialogService.End(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"dialog": dialog})
}
