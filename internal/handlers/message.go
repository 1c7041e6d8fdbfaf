package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type MessageHandler struct {
	log            *logger.Logger
	messageService services.MessageService
}

func NewMessageHandler(log *logger.Logger, messageService services.MessageService) *MessageHandler {
	return &MessageHandler{
		log:            log.With("handler", "MessageHandler"),
		messageService: messageService,
	}
}

// POST /api/v1/dialogs/:dialog_id/messages
func (h *MessageHandler) Create(c *gin.Context) {
	dialogID, err := pathID(c, "dialog_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req struct {
		SenderType string                 `json:"sender_type" binding:"required"`
		Content    string                 `json:"content" binding:"required"`
		IsQuestion bool                   `json:"is_question"`
		ExtraData  map[string]interface{} `json:"extra_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	message, record, err := h.messageService.Create(c.Request.Context(), services.MessageCreate{
		DialogID:   dialogID,
		SenderType: req.SenderType,
		Content:    req.Content,
		IsQuestion: req.IsQuestion,
		ExtraData:  req.ExtraData,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"message": message, "metrics": record})
}

// GET /api/v1/messages/:message_id
func (h *MessageHandler) GetByID(c *gin.Context) {
	id, err := pathID(c, "message_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	message, err := h.messageService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": message})
}

// GET /api/v1/dialogs/:dialog_id/messages
func (h *MessageHandler) ListByDialog(c *gin.Context) {
	dialogID, err := pathID(c, "dialog_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	offset, limit := pagination(c)
	messages, err := h.messageService.ListByDialog(c.Request.Context(), dialogID, offset, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}
