package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"score_gate/internal/service"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

type StatsHandler struct {
	auditService service.AuditService
	log          logger.Logger
}

func NewStatsHandler(auditService service.AuditService, log logger.Logger) *StatsHandler {
	return &StatsHandler{
		auditService: auditService,
		log:          log,
	}
}

// GetDecisionStats returns how many submissions ended with each reason code.
func (h *StatsHandler) GetDecisionStats(c *gin.Context) {
	totals, err := h.auditService.Totals(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to read decision stats", "error", err)
		_ = c.Error(apperrors.NewAPIError("Failed to read stats", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"decisions": totals})
}
