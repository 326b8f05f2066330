package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"score_gate/internal/config"
)

type HealthHandler struct {
	environment string
	contract    string
	writable    func() bool
}

func NewHealthHandler(cfg *config.Config, writable func() bool) *HealthHandler {
	return &HealthHandler{
		environment: cfg.Environment,
		contract:    cfg.Ledger.ContractAddress,
		writable:    writable,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "score-gate",
		"environment": h.environment,
	})
}

// ServerInfo tells the game client which ledger the server writes to.
func (h *HealthHandler) ServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"contract_address": h.contract,
		"ledger_writable":  h.writable(),
		"api_base":         "/api",
	})
}
