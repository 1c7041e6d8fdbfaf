package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

type ProfileHandler struct {
	log            *logger.Logger
	profileService services.ProfileService
}

func NewProfileHandler(log *logger.Logger, profileService services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		log:            log.With("handler", "ProfileHandler"),
		profileService: profileService,
	}
}

// GET /api/v1/users/:user_id/profile
// Creates a default profile on first access.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	profile, err := h.profileService.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile": profile})
}

// PATCH /api/v1/users/:user_id/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req struct {
		PreferredFormat   *string `json:"preferred_format"`
		LearningPace      *string `json:"learning_pace"`
		CurrentDifficulty *string `json:"current_difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	profile, err := h.profileService.Update(c.Request.Context(), userID, services.ProfileUpdate{
		PreferredFormat:   req.PreferredFormat,
		LearningPace:      req.LearningPace,
		CurrentDifficulty: req.CurrentDifficulty,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile": profile})
}

// DELETE /api/v1/users/:user_id/profile
func (h *ProfileHandler) Delete(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.profileService.Delete(c.Request.Context(), userID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/users/:user_id/profile/weak-topics
func (h *ProfileHandler) WeakTopics(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	topics, err := h.profileService.WeakTopics(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"topics": topics})
}

// GET /api/v1/users/:user_id/profile/strong-topics
func (h *ProfileHandler) StrongTopics(c *gin.Context) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	topics, err := h.profileService.StrongTopics(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"topics": topics})
}
