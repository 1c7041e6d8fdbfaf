package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

// AuthUserKey is the gin context key the auth middleware stores the
// authenticated user id under.
const AuthUserKey = "auth_user_id"

// AuthUserID reads the authenticated user id set by the auth middleware.
func AuthUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(AuthUserKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
	}
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"token": token, "user": user})
}
