package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type ContentHandler struct {
	log            *logger.Logger
	contentService services.ContentService
}

func NewContentHandler(log *logger.Logger, contentService services.ContentService) *ContentHandler {
	return &ContentHandler{
		log:            log.With("handler", "ContentHandler"),
		contentService: contentService,
	}
}

// POST /api/v1/content
func (h *ContentHandler) Create(c *gin.Context) {
	var req struct {
		Title           string                 `json:"title" binding:"required"`
		Topic           string                 `json:"topic" binding:"required"`
		Subtopic        *string                `json:"subtopic"`
		DifficultyLevel string                 `json:"difficulty_level"`
		Format          string                 `json:"format"`
		ContentType     string                 `json:"content_type" binding:"required"`
		ContentData     map[string]interface{} `json:"content_data" binding:"required"`
		ReferenceAnswer interface{}            `json:"reference_answer"`
		Hints           []string               `json:"hints"`
		ExtraData       map[string]interface{} `json:"extra_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	item, err := h.contentService.Create(c.Request.Context(), services.ContentCreate{
		Title:           req.Title,
		Topic:           req.Topic,
		Subtopic:        req.Subtopic,
		DifficultyLevel: req.DifficultyLevel,
		Format:          req.Format,
		ContentType:     req.ContentType,
		ContentData:     req.ContentData,
		ReferenceAnswer: req.ReferenceAnswer,
		Hints:           req.Hints,
		ExtraData:       req.ExtraData,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"content": item})
}

// GET /api/v1/content/:content_id
func (h *ContentHandler) GetByID(c *gin.Context) {
	id, err := pathID(c, "content_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	item, err := h.contentService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"content": item})
}

// DELETE /api/v1/content/:content_id
func (h *ContentHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "content_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.contentService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/content
func (h *ContentHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	items, total, err := h.contentService.List(c.Request.Context(), contentFiltersFromQuery(c), offset, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"content": items, "total": total})
}

// GET /api/v1/content/random
func (h *ContentHandler) Random(c *gin.Context) {
	item, err := h.contentService.Random(c.Request.Context(), contentFiltersFromQuery(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"content": item})
}

// GET /api/v1/content/topics
func (h *ContentHandler) Topics(c *gin.Context) {
	topics, err := h.contentService.Topics(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"topics": topics})
}

// GET /api/v1/content/topics/:topic/next?after_id=N
func (h *ContentHandler) NextInTopic(c *gin.Context) {
	var afterID int64
	if raw := c.Query("after_id"); raw != "" {
		var err error
		afterID, err = parseID(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_id", err)
			return
		}
	}

	item, err := h.contentService.NextInTopic(c.Request.Context(), c.Param("topic"), afterID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"content": item})
}

func contentFiltersFromQuery(c *gin.Context) repos.ContentFilters {
	var f repos.ContentFilters
	if v := c.Query("topic"); v != "" {
		f.Topic = &v
	}
	if v := c.Query("subtopic"); v != "" {
		f.Subtopic = &v
	}
	if v := c.Query("difficulty_level"); v != "" {
		f.DifficultyLevel = &v
	}
	if v := c.Query("format"); v != "" {
		f.Format = &v
	}
	if v := c.Query("content_type"); v != "" {
		f.ContentType = &v
	}
	return f
}
