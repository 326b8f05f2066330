package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"score_gate/internal/service"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

type AuthHandler struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthHandler(authService service.AuthService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type MockLoginRequest struct {
	Username string `json:"username"`
}

// MockLogin issues a development session. The body is optional.
func (h *AuthHandler) MockLogin(c *gin.Context) {
	var req MockLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Warn("Invalid mock login request", "error", err)
		_ = c.Error(apperrors.NewAPIError("Invalid request body", http.StatusBadRequest))
		return
	}

	session, err := h.authService.MockLogin(c.Request.Context(), req.Username)
	if err != nil {
		if apperrors.HTTPStatusFromError(err) == http.StatusInternalServerError {
			h.log.Error("Mock login failed", "error", err)
			_ = c.Error(apperrors.NewAPIError("Mock login failed", http.StatusInternalServerError))
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"session": session,
		"message": "Mock login successful (dev mode)",
	})
}
