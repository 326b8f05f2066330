package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"score_gate/internal/config"
	"score_gate/internal/domain"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/jwt"
)

// SessionValidator decides whether the session attached to a submission is
// well-formed and old enough to be trusted. It has no side effects.
type SessionValidator struct {
	minAge        time.Duration
	maxAge        time.Duration
	secret        string
	requireSigned bool
}

func NewSessionValidator(gate config.GateConfig, session config.SessionConfig) *SessionValidator {
	return &SessionValidator{
		minAge:        gate.MinSessionAge,
		maxAge:        gate.MaxSessionAge,
		secret:        session.Secret,
		requireSigned: session.RequireSigned,
	}
}

func (v *SessionValidator) Validate(session *domain.SessionRef, now time.Time) domain.Verdict {
	if session == nil {
		return domain.Reject(domain.ReasonSessionMissing, "Please login first to submit your score", "session absent")
	}

	if session.DecodeError != "" {
		return domain.Reject(domain.ReasonSessionMalformed, "Invalid session", session.DecodeError)
	}

	var missing []string
	if strings.TrimSpace(session.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(session.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(session.Provider) == "" {
		missing = append(missing, "provider")
	}
	if len(missing) > 0 {
		return domain.Reject(domain.ReasonSessionMalformed, "Invalid session",
			"session missing "+strings.Join(missing, ", "))
	}

	loginAt, hasLogin := session.LoginAt()

	if session.Token != "" || v.requireSigned {
		claims, verdict := v.verifyToken(session)
		if !verdict.Valid {
			return verdict
		}
		if !hasLogin && claims != nil {
			loginAt, hasLogin = time.UnixMilli(claims.LoginTimeMs), true
		}
	}

	if hasLogin {
		age := now.Sub(loginAt)
		if age < v.minAge {
			return domain.Reject(domain.ReasonSessionTooFresh, "Session too new, please play the game normally",
				fmt.Sprintf("session age %s below minimum %s", age, v.minAge))
		}
		if v.maxAge > 0 && age > v.maxAge {
			return domain.Reject(domain.ReasonSessionStale, "Session expired, please login again",
				fmt.Sprintf("session age %s above maximum %s", age, v.maxAge))
		}
	}

	return domain.Accept()
}

func (v *SessionValidator) verifyToken(session *domain.SessionRef) (*jwt.SessionClaims, domain.Verdict) {
	reject := func(detail string) (*jwt.SessionClaims, domain.Verdict) {
		return nil, domain.Reject(domain.ReasonSessionSignatureInvalid, "Invalid session", detail)
	}

	if session.Token == "" {
		return reject("session token required")
	}
	if v.secret == "" {
		// Tokens cannot be checked without a secret; only reject when they are mandatory.
		if v.requireSigned {
			return reject("session secret not configured")
		}
		return nil, domain.Accept()
	}

	claims, err := jwt.ValidateSessionToken(session.Token, v.secret)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenExpired) {
			return nil, domain.Reject(domain.ReasonSessionStale, "Session expired, please login again", "session token expired")
		}
		return reject(err.Error())
	}

	if claims.UserID != session.UserID || claims.Provider != session.Provider {
		return reject("session token does not match session identity")
	}
	if loginAt, ok := session.LoginAt(); ok && loginAt.UnixMilli() != claims.LoginTimeMs {
		return reject("session token does not match login time")
	}

	return claims, domain.Accept()
}
