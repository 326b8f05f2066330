package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"score_gate/internal/domain"
	"score_gate/internal/middleware"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

// ScoreSubmitter is the admission pipeline as seen by the transport.
type ScoreSubmitter interface {
	Submit(ctx context.Context, sub *domain.Submission) domain.Outcome
}

type ScoreHandler struct {
	submitter ScoreSubmitter
	log       logger.Logger
}

func NewScoreHandler(submitter ScoreSubmitter, log logger.Logger) *ScoreHandler {
	return &ScoreHandler{
		submitter: submitter,
		log:       log,
	}
}

type SubmitScoreRequest struct {
	Player   string          `json:"player"`
	Score    *float64        `json:"score"`
	TxCount  *float64        `json:"txCount"`
	Duration *float64        `json:"duration"`
	Session  json.RawMessage `json:"session"`
	GameData domain.GameData `json:"gameData"`
}

type SubmitScoreResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	BlockNumber     uint64 `json:"blockNumber,omitempty"`
	Player          string `json:"player"`
	ScoreIncrement  int64  `json:"scoreIncrement"`
	TxIncrement     int64  `json:"txIncrement"`
	Pending         bool   `json:"pending,omitempty"`
}

func (h *ScoreHandler) Submit(c *gin.Context) {
	var req SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid score submission", "error", err, "request_id", middleware.GetRequestID(c))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "reason": domain.ReasonInvalidRequest})
		return
	}

	player := strings.TrimSpace(req.Player)
	if player == "" || req.Score == nil || req.TxCount == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request: missing required fields",
			"reason": domain.ReasonInvalidRequest,
		})
		return
	}
	if !common.IsHexAddress(player) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid player address format",
			"reason": domain.ReasonInvalidRequest,
		})
		return
	}
	if negative(req.Score) || negative(req.TxCount) || negative(req.Duration) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request: score, txCount and duration must not be negative",
			"reason": domain.ReasonInvalidRequest,
		})
		return
	}

	sub := &domain.Submission{
		PlayerAddress:    player,
		ScoreIncrement:   floorInt(req.Score),
		TxCountIncrement: floorInt(req.TxCount),
		DurationMs:       floorInt(req.Duration),
		Session:          decodeSession(req.Session),
		GameData:         req.GameData,
		Origin:           c.ClientIP(),
		RequestID:        middleware.GetRequestID(c),
		ReceivedAt:       time.Now(),
	}
	if sub.GameData == nil {
		sub.GameData = domain.GameData{}
	}

	out := h.submitter.Submit(c.Request.Context(), sub)

	switch {
	case out.State == domain.StateSubmitted:
		resp := SubmitScoreResponse{
			Success:        true,
			Player:         player,
			ScoreIncrement: sub.ScoreIncrement,
			TxIncrement:    sub.TxCountIncrement,
		}
		if out.Receipt != nil {
			resp.TransactionHash = out.Receipt.TransactionHash
			resp.BlockNumber = out.Receipt.BlockNumber
		}
		c.JSON(http.StatusOK, resp)

	case out.Pending:
		c.JSON(http.StatusAccepted, SubmitScoreResponse{
			Success:        true,
			Pending:        true,
			Player:         player,
			ScoreIncrement: sub.ScoreIncrement,
			TxIncrement:    sub.TxCountIncrement,
		})

	default:
		h.writeRejection(c, out)
	}
}

func (h *ScoreHandler) writeRejection(c *gin.Context, out domain.Outcome) {
	status := apperrors.HTTPStatusFromError(out.Err())
	message := out.Verdict.Message
	if out.Stage == domain.StatePlausibilityChecked {
		message = "Invalid game session: " + message
	}

	body := gin.H{
		"error":  message,
		"reason": out.Verdict.Reason,
	}
	if status == http.StatusTooManyRequests && out.Verdict.RetryAfterSec > 0 {
		c.Header("Retry-After", strconv.Itoa(out.Verdict.RetryAfterSec))
		body["retryAfter"] = out.Verdict.RetryAfterSec
	}
	c.JSON(status, body)
}

// decodeSession returns nil for an absent session. Anything that is not a
// well-formed session object is passed on marked malformed so the session
// check rejects it.
func decodeSession(raw json.RawMessage) *domain.SessionRef {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '{' {
		return &domain.SessionRef{DecodeError: "session is not an object"}
	}
	var session domain.SessionRef
	if err := json.Unmarshal(raw, &session); err != nil {
		return &domain.SessionRef{DecodeError: err.Error()}
	}
	return &session
}

func negative(v *float64) bool {
	return v != nil && *v < 0
}

// MethodNotAllowed answers any verb a route does not register.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// maxWholeNumber is the largest integer a JSON number carries exactly.
const maxWholeNumber = 1 << 53

func floorInt(v *float64) int64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	f := math.Floor(*v)
	switch {
	case f > maxWholeNumber:
		return maxWholeNumber
	case f < -maxWholeNumber:
		return -maxWholeNumber
	}
	return int64(f)
}
