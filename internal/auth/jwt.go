// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/middleware"
)

const minSecretLength = 32

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	key    []byte
	config config.JWTConfig
	now    func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf(
			"jwt secret must be at least %d bytes",
			minSecretLength,
		)
	}
	if cfg.ExpiresIn <= 0 {
		return nil, fmt.Errorf("jwt expiry must be positive")
	}

	return &TokenManager{
		key:    []byte(cfg.Secret),
		config: cfg,
		now:    time.Now,
	}, nil
}

// SessionToken is a signed token plus the instant it stops being valid.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

func (m *TokenManager) CreateSessionToken(userID string) (*SessionToken, error) {
	now := m.now()
	expires := now.Add(m.config.ExpiresIn)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(expires).
		NotBefore(now).
		Claim("id", userID).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.key))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SessionToken{Token: string(signed), ExpiresAt: expires}, nil
}

func (m *TokenManager) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.TokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	issuedAt, ok := token.IssuedAt()
	if !ok {
		return nil, fmt.Errorf(
			"verify token: missing iat: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &middleware.TokenClaims{
		UserID:   subject,
		IssuedAt: issuedAt,
	}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
