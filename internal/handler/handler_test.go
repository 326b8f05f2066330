package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"score_gate/internal/config"
	"score_gate/internal/domain"
	"score_gate/internal/middleware"
	"score_gate/internal/service"
	"score_gate/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSubmitter struct {
	got *domain.Submission
	out domain.Outcome
}

func (s *stubSubmitter) Submit(_ context.Context, sub *domain.Submission) domain.Outcome {
	s.got = sub
	return s.out
}

func newScoreRouter(sub ScoreSubmitter) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(MethodNotAllowed)
	r.Use(middleware.RequestID())
	r.POST("/api/submit-score", NewScoreHandler(sub, logger.NewNop()).Submit)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validBody = `{
	"player": "0x00000000000000000000000000000000000000A1",
	"score": 800.9,
	"txCount": 1,
	"duration": 20000.4,
	"session": {"userId": "user-1", "username": "hero", "provider": "privy", "loginTime": 1700000000000},
	"gameData": {"bossDefeated": true, "mapKey": "level1"}
}`

func TestScoreHandler_Success(t *testing.T) {
	stub := &stubSubmitter{out: domain.Outcome{
		State:   domain.StateSubmitted,
		Verdict: domain.Accept(),
		Receipt: &domain.LedgerReceipt{TransactionHash: "0xdead", BlockNumber: 42},
	}}
	w := postJSON(newScoreRouter(stub), "/api/submit-score", validBody)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp SubmitScoreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "0xdead", resp.TransactionHash)
	assert.Equal(t, uint64(42), resp.BlockNumber)
	assert.Equal(t, int64(800), resp.ScoreIncrement)
	assert.Equal(t, int64(1), resp.TxIncrement)

	require.NotNil(t, stub.got)
	assert.Equal(t, int64(800), stub.got.ScoreIncrement)
	assert.Equal(t, int64(20000), stub.got.DurationMs)
	assert.Equal(t, "user-1", stub.got.Session.UserID)
	assert.True(t, stub.got.GameData.BossDefeated())
	assert.NotEmpty(t, stub.got.RequestID)
	assert.NotEmpty(t, stub.got.Origin)
}

func TestScoreHandler_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "not json", body: `{`, want: "Invalid request body"},
		{name: "missing score", body: `{"player":"0x00000000000000000000000000000000000000A1","txCount":1}`, want: "Invalid request: missing required fields"},
		{name: "missing player", body: `{"score":1,"txCount":1}`, want: "Invalid request: missing required fields"},
		{name: "score as string", body: `{"player":"0x00000000000000000000000000000000000000A1","score":"800","txCount":1}`, want: "Invalid request body"},
		{name: "bad address", body: `{"player":"0x123","score":1,"txCount":1}`, want: "Invalid player address format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSubmitter{}
			w := postJSON(newScoreRouter(stub), "/api/submit-score", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			assert.Nil(t, stub.got)
		})
	}
}

func TestScoreHandler_UndecodableSessionReachesGate(t *testing.T) {
	sessions := []struct {
		name    string
		session string
	}{
		{name: "string", session: `"abc"`},
		{name: "number", session: `42`},
		{name: "bad login time", session: `{"userId":"user-1","username":"hero","provider":"privy","loginTime":"yesterday"}`},
	}

	for _, tt := range sessions {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"player":"0x00000000000000000000000000000000000000A1","score":800,"txCount":1,"duration":20000,"session":` + tt.session + `}`
			stub := &stubSubmitter{out: domain.Outcome{State: domain.StateRejected, Stage: domain.StateSessionChecked,
				Verdict: domain.Reject(domain.ReasonSessionMalformed, "Invalid session", "")}}
			w := postJSON(newScoreRouter(stub), "/api/submit-score", body)

			require.NotNil(t, stub.got, "submission must reach the gate")
			require.NotNil(t, stub.got.Session)
			assert.NotEmpty(t, stub.got.Session.DecodeError)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), string(domain.ReasonSessionMalformed))
		})
	}
}

func TestScoreHandler_NullSessionIsAbsent(t *testing.T) {
	stub := &stubSubmitter{out: domain.Outcome{State: domain.StateRejected, Stage: domain.StateSessionChecked,
		Verdict: domain.Reject(domain.ReasonSessionMissing, "Please login first to submit your score", "")}}
	body := `{"player":"0x00000000000000000000000000000000000000A1","score":800,"txCount":1,"session":null}`
	w := postJSON(newScoreRouter(stub), "/api/submit-score", body)

	require.NotNil(t, stub.got)
	assert.Nil(t, stub.got.Session)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScoreHandler_RejectsNegativeNumbers(t *testing.T) {
	bodies := map[string]string{
		"duration": `{"player":"0x00000000000000000000000000000000000000A1","score":800,"txCount":1,"duration":-5000}`,
		"score":    `{"player":"0x00000000000000000000000000000000000000A1","score":-1,"txCount":1,"duration":20000}`,
		"txCount":  `{"player":"0x00000000000000000000000000000000000000A1","score":800,"txCount":-1,"duration":20000}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			stub := &stubSubmitter{}
			w := postJSON(newScoreRouter(stub), "/api/submit-score", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), string(domain.ReasonInvalidRequest))
			assert.Nil(t, stub.got)
		})
	}
}

func TestScoreHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		out        domain.Outcome
		wantStatus int
		wantError  string
		retryAfter string
	}{
		{
			name: "session",
			out: domain.Outcome{State: domain.StateRejected, Stage: domain.StateSessionChecked,
				Verdict: domain.Reject(domain.ReasonSessionTooFresh, "Session too new, please play the game normally", "")},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Session too new",
		},
		{
			name: "rate",
			out: domain.Outcome{State: domain.StateRejected, Stage: domain.StateWalletRateChecked,
				Verdict: domain.Verdict{Reason: domain.ReasonWalletRateExceeded, Message: "Too many score submissions", RetryAfterSec: 42}},
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Too many score submissions",
			retryAfter: "42",
		},
		{
			name: "plausibility",
			out: domain.Outcome{State: domain.StateRejected, Stage: domain.StatePlausibilityChecked,
				Verdict: domain.Reject(domain.ReasonDurationOutOfRange, "Invalid game duration", "")},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid game session: Invalid game duration",
		},
		{
			name: "ledger",
			out: domain.Outcome{State: domain.StateRejected, Stage: domain.StateAdmitted,
				Verdict: domain.Reject(domain.ReasonLedgerInsufficientFunds, "Server wallet insufficient funds", "")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Server wallet insufficient funds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(newScoreRouter(&stubSubmitter{out: tt.out}), "/api/submit-score", validBody)
			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"].(string)[:len(tt.wantError)])
			assert.Equal(t, string(tt.out.Verdict.Reason), body["reason"])

			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			if tt.retryAfter != "" {
				assert.Equal(t, float64(42), body["retryAfter"])
			}
		})
	}
}

func TestScoreHandler_Pending(t *testing.T) {
	stub := &stubSubmitter{out: domain.Outcome{State: domain.StateAdmitted, Verdict: domain.Accept(), Pending: true}}
	w := postJSON(newScoreRouter(stub), "/api/submit-score", validBody)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":true`)
}

func TestScoreHandler_MethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	newScoreRouter(&stubSubmitter{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/submit-score", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
}

type stubLeaderboard struct {
	lb    *domain.Leaderboard
	entry *domain.LeaderboardEntry
	err   error
}

func (s *stubLeaderboard) Get(context.Context) (*domain.Leaderboard, error) { return s.lb, s.err }
func (s *stubLeaderboard) GetPlayer(context.Context, string) (*domain.LeaderboardEntry, error) {
	return s.entry, s.err
}

func newLeaderboardRouter(svc service.LeaderboardService) *gin.Engine {
	h := NewLeaderboardHandler(svc, logger.NewNop())
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/api/leaderboard", h.Get)
	r.GET("/api/leaderboard/:address", h.GetPlayer)
	return r
}

func TestLeaderboardHandler(t *testing.T) {
	entry := domain.LeaderboardEntry{
		PlayerTotals: domain.PlayerTotals{Address: "0x00000000000000000000000000000000000000A1", Score: 900, TransactionCount: 3},
		Rank:         1,
	}
	svc := &stubLeaderboard{
		lb:    &domain.Leaderboard{Entries: []domain.LeaderboardEntry{entry}, TotalPlayers: 1, ContractAddress: "0xc"},
		entry: &entry,
	}
	r := newLeaderboardRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success      bool                      `json:"success"`
		Leaderboard  []domain.LeaderboardEntry `json:"leaderboard"`
		TotalPlayers int                       `json:"totalPlayers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Leaderboard, 1)
	assert.Equal(t, int64(900), body.Leaderboard[0].Score)
	assert.Equal(t, 1, body.Leaderboard[0].Rank)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard/0x00000000000000000000000000000000000000A1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rank":1`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid player address format"}`, w.Body.String())
}

func TestLeaderboardHandler_Error(t *testing.T) {
	r := newLeaderboardRouter(&stubLeaderboard{err: errors.New("rpc down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch leaderboard data","success":false,"leaderboard":[],"totalPlayers":0}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard/0x00000000000000000000000000000000000000A1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch player data"}`, w.Body.String())
}

func TestAuthHandler_MockLogin(t *testing.T) {
	svc := service.NewAuthService(config.SessionConfig{EnableMock: true, Issuer: "score-gate"}, logger.NewNop())
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.POST("/api/auth/mock", NewAuthHandler(svc, logger.NewNop()).MockLogin)

	w := postJSON(r, "/api/auth/mock", `{"username":"hero"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK      bool              `json:"ok"`
		Session domain.SessionRef `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, "hero", body.Session.Username)
	assert.Equal(t, service.MockProvider, body.Session.Provider)
	assert.NotNil(t, body.Session.LoginTime)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/mock", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/auth/mock", `{"username":"`+strings.Repeat("x", 40)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username is too long")

	w = postJSON(r, "/api/auth/mock", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, w.Body.String())
}

func TestAuthHandler_MockLoginDisabled(t *testing.T) {
	svc := service.NewAuthService(config.SessionConfig{EnableMock: false}, logger.NewNop())
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.POST("/api/auth/mock", NewAuthHandler(svc, logger.NewNop()).MockLogin)

	w := postJSON(r, "/api/auth/mock", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
