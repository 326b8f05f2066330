package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Submission is one inbound "boss defeated" report, normalized to integers.
// It only lives for the duration of one request.
type Submission struct {
	PlayerAddress    string
	ScoreIncrement   int64
	TxCountIncrement int64
	DurationMs       int64
	Session          *SessionRef
	GameData         GameData
	Origin           string
	RequestID        string
	ReceivedAt       time.Time
}

// WalletKey is the wallet limiter key: the lower-cased player address.
func (s *Submission) WalletKey() string {
	return strings.ToLower(strings.TrimSpace(s.PlayerAddress))
}

// SessionRef is created by the external login flow and echoed by the client
// on every submission.
type SessionRef struct {
	UserID        string       `json:"userId"`
	Username      string       `json:"username"`
	Provider      string       `json:"provider"`
	WalletAddress string       `json:"walletAddress,omitempty"`
	LoginTime     *EpochMillis `json:"loginTime,omitempty"`
	// LoginTimeEpochMs is accepted as an alias of LoginTime.
	LoginTimeEpochMs *EpochMillis `json:"loginTimeEpochMs,omitempty"`
	Token            string       `json:"token,omitempty"`

	// DecodeError is set by the transport when the client sent a session that
	// could not be decoded.
	DecodeError string `json:"-"`
}

// LoginAt returns the login instant when the client provided one.
func (s *SessionRef) LoginAt() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	if s.LoginTime != nil {
		return s.LoginTime.Time(), true
	}
	if s.LoginTimeEpochMs != nil {
		return s.LoginTimeEpochMs.Time(), true
	}
	return time.Time{}, false
}

// EpochMillis decodes either a JSON number of milliseconds since the epoch or
// an RFC 3339 string.
type EpochMillis int64

func (m EpochMillis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

func (m EpochMillis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(m), 10)), nil
}

func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			*m = EpochMillis(ms)
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid login time %q: %w", s, err)
		}
		*m = EpochMillis(t.UnixMilli())
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid login time: %w", err)
	}
	*m = EpochMillis(int64(f))
	return nil
}

// GameData is the free-form payload the client attaches to a submission.
type GameData map[string]interface{}

const (
	GameDataBossDefeated = "bossDefeated"
	GameDataTimestamp    = "timestamp"
	GameDataKind         = "kind"
)

// DefaultSubmissionKind is assumed when the client does not send a kind; the
// game only submits after the boss is defeated.
const DefaultSubmissionKind = "boss_clear"

func (g GameData) BossDefeated() bool {
	v, ok := g[GameDataBossDefeated].(bool)
	return ok && v
}

// Timestamp returns the client clock (epoch ms) at submission time, if sent.
func (g GameData) Timestamp() (int64, bool) {
	switch v := g[GameDataTimestamp].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			n = int64(f)
		}
		return n, true
	default:
		return 0, false
	}
}

func (g GameData) Kind() string {
	if v, ok := g[GameDataKind].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return DefaultSubmissionKind
}

// LedgerIncrement is the normalized write forwarded to the ledger.
type LedgerIncrement struct {
	Player           string
	ScoreIncrement   int64
	TxCountIncrement int64
}

// LedgerReceipt confirms a ledger write.
type LedgerReceipt struct {
	TransactionHash string
	BlockNumber     uint64
}
