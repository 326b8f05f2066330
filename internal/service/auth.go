package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"score_gate/internal/config"
	"score_gate/internal/domain"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/jwt"
	"score_gate/pkg/logger"
)

const (
	MockProvider    = "mock-dev"
	defaultUsername = "Player"
	maxUsernameLen  = 32
)

// AuthService issues development sessions. Production logins come from the
// external wallet provider and never pass through here.
type AuthService interface {
	MockLogin(ctx context.Context, username string) (*domain.SessionRef, error)
}

type authService struct {
	cfg config.SessionConfig
	log logger.Logger
	now func() time.Time
}

func NewAuthService(cfg config.SessionConfig, log logger.Logger) AuthService {
	return &authService{
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

func (s *authService) MockLogin(_ context.Context, username string) (*domain.SessionRef, error) {
	if !s.cfg.EnableMock {
		return nil, fmt.Errorf("%w: mock login disabled", apperrors.ErrNotFound)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultUsername
	}
	if len(username) > maxUsernameLen {
		return nil, fmt.Errorf("%w: username is too long (max %d characters)", apperrors.ErrBadRequest, maxUsernameLen)
	}

	// A throwaway key gives the dev player a well-formed wallet address.
	key, err := crypto.GenerateKey()
	if err != nil {
		s.log.Error("Failed to generate dev wallet", "error", err)
		return nil, fmt.Errorf("failed to generate dev wallet: %w", err)
	}

	loginMs := s.now().UnixMilli()
	login := domain.EpochMillis(loginMs)
	session := &domain.SessionRef{
		UserID:        "dev-" + uuid.NewString(),
		Username:      username,
		Provider:      MockProvider,
		WalletAddress: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		LoginTime:     &login,
	}

	if s.cfg.Secret != "" {
		token, err := jwt.GenerateSessionToken(jwt.SessionClaims{
			UserID:        session.UserID,
			Username:      session.Username,
			Provider:      session.Provider,
			WalletAddress: session.WalletAddress,
			LoginTimeMs:   loginMs,
		}, s.cfg.Secret, s.cfg.Issuer, s.cfg.TTL)
		if err != nil {
			s.log.Error("Failed to sign session token", "error", err)
			return nil, fmt.Errorf("failed to sign session token: %w", err)
		}
		session.Token = token
	}

	s.log.Info("Mock login", "user_id", session.UserID, "username", username, "wallet", session.WalletAddress)
	return session, nil
}
