// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/user"
)

type contextKey string

const ClaimsKey contextKey = "jwt_claims"

const (
	msgUserGone        = "The user belonging to this token does no longer exist."
	msgPasswordChanged = "User recently changed password! Please log in again."
)

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*TokenClaims, error)
}

type TokenClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UserLoader resolves the subject of a verified token.
type UserLoader interface {
	GetByID(ctx context.Context, id primitive.ObjectID, opts user.FindOptions) (*user.User, error)
}

// Protect requires a valid session token, read from the Authorization
// header or else the session cookie, and attaches the owning user to the
// request context.
func Protect(
	verifier TokenVerifier,
	users UserLoader,
	rs *core.Responder,
	cookieName string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				token = extractCookie(r, cookieName)
			}
			if token == "" {
				rs.Error(w, r, core.UnauthorizedError(""))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				rs.Error(w, r, authError(err))
				return
			}

			u, err := loadUser(r.Context(), users, claims.UserID)
			if err != nil {
				rs.Error(w, r, err)
				return
			}

			if u.ChangedPasswordAfter(claims.IssuedAt) {
				rs.Error(w, r, core.UnauthorizedError(msgPasswordChanged))
				return
			}

			core.AddSpanEvent(r.Context(), "auth.protect",
				attribute.String("user.id", claims.UserID),
				attribute.String("user.role", u.Role),
			)

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = user.WithCurrent(ctx, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loadUser(ctx context.Context, users UserLoader, rawID string) (*user.User, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, core.TokenInvalidError()
	}

	u, err := users.GetByID(ctx, id, user.FindOptions{})
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.UnauthorizedError(msgUserGone)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Restrict allows the request through only when the current user holds
// one of roles. It must run after Protect.
func Restrict(rs *core.Responder, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := user.Current(r.Context())
			if current == nil {
				rs.Error(w, r, core.UnauthorizedError(""))
				return
			}

			if !current.HasRole(roles...) {
				rs.Error(w, r, core.ForbiddenError(""))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func extractCookie(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func authError(err error) error {
	if core.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	default:
		return core.TokenInvalidError()
	}
}

func GetClaims(ctx context.Context) *TokenClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*TokenClaims); ok {
		return claims
	}
	return nil
}

func GetUserID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}
