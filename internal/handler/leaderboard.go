package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"score_gate/internal/domain"
	"score_gate/internal/service"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

type LeaderboardHandler struct {
	leaderboardService service.LeaderboardService
	log                logger.Logger
}

func NewLeaderboardHandler(leaderboardService service.LeaderboardService, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
		log:                log,
	}
}

func (h *LeaderboardHandler) Get(c *gin.Context) {
	lb, err := h.leaderboardService.Get(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to fetch leaderboard", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":        "Failed to fetch leaderboard data",
			"success":      false,
			"leaderboard":  []domain.LeaderboardEntry{},
			"totalPlayers": 0,
		})
		return
	}

	entries := lb.Entries
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"leaderboard":     entries,
		"totalPlayers":    lb.TotalPlayers,
		"lastUpdated":     lb.LastUpdated,
		"contractAddress": lb.ContractAddress,
	})
}

func (h *LeaderboardHandler) GetPlayer(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		_ = c.Error(apperrors.NewAPIError("Invalid player address format", http.StatusBadRequest))
		return
	}

	entry, err := h.leaderboardService.GetPlayer(c.Request.Context(), address)
	if err != nil {
		h.log.Warn("Failed to fetch player totals", "error", err, "player", address)
		_ = c.Error(apperrors.NewAPIError("Failed to fetch player data", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"player":  entry,
	})
}
