// AngelaMos | 2026
// handler.go

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/user"
)

const (
	loggedOutValue  = "loggedout"
	logoutCookieTTL = 10 * time.Second
	resetPathPrefix = "/api/v1/users/resetPassword/"
)

type Handler struct {
	service *Service
	tokens  *TokenManager
	cookie  CookieConfig
	now     func() time.Time
}

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func CookieConfigFrom(cfg *config.Config) CookieConfig {
	return CookieConfig{
		Name:   cfg.JWT.CookieName,
		TTL:    cfg.JWT.CookieTTL(),
		Secure: cfg.IsProduction(),
	}
}

func NewHandler(service *Service, tokens *TokenManager, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "jwt"
	}
	return &Handler{
		service: service,
		tokens:  tokens,
		cookie:  cookie,
		now:     time.Now,
	}
}

var _ user.SessionWriter = (*Handler)(nil)

// RegisterRoutes mounts the credential routes on the users router. upload
// may be nil when no image host is configured.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	rs *core.Responder,
	protect, upload func(http.Handler) http.Handler,
) {
	if upload != nil {
		r.With(upload).Post("/signup", rs.Wrap(h.Signup))
	} else {
		r.Post("/signup", rs.Wrap(h.Signup))
	}
	r.Post("/login", rs.Wrap(h.Login))
	r.Get("/logout", rs.Wrap(h.Logout))
	r.Post("/forgotPassword", rs.Wrap(h.ForgotPassword))
	r.Patch("/resetPassword/{token}", rs.Wrap(h.ResetPassword))

	r.With(protect).Patch("/updateMyPassword", rs.Wrap(h.UpdatePassword))
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) error {
	var req SignupRequest
	if err := core.DecodeBody(r, &req); err != nil {
		return err
	}

	u, err := h.service.Signup(r.Context(), req)
	if err != nil {
		return err
	}

	return h.WriteSession(w, u, http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := core.DecodeBody(r, &req); err != nil {
		return err
	}

	u, err := h.service.Login(r.Context(), req)
	if err != nil {
		return err
	}

	return h.WriteSession(w, u, http.StatusOK)
}

// Logout overwrites the session cookie with a short-lived placeholder.
// Bearer tokens stay valid until they expire.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    loggedOutValue,
		Path:     "/",
		Expires:  h.now().Add(logoutCookieTTL),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	core.JSON(w, http.StatusOK, core.Envelope{Status: core.StatusSuccess})
	return nil
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var req ForgotPasswordRequest
	if err := core.DecodeBody(r, &req); err != nil {
		return err
	}

	base := requestScheme(r) + "://" + r.Host + resetPathPrefix
	err := h.service.ForgotPassword(r.Context(), req.Email, func(token string) string {
		return base + token
	})
	if err != nil {
		return err
	}

	core.Message(w, http.StatusOK, "Token sent to email!")
	return nil
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req ResetPasswordRequest
	if err := core.DecodeBody(r, &req); err != nil {
		return err
	}

	u, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		return err
	}

	return h.WriteSession(w, u, http.StatusOK)
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) error {
	var req UpdatePasswordRequest
	if err := core.DecodeBody(r, &req); err != nil {
		return err
	}

	u, err := h.service.UpdatePassword(r.Context(), user.Current(r.Context()), req)
	if err != nil {
		return err
	}

	return h.WriteSession(w, u, http.StatusOK)
}

// WriteSession signs a token for u, sets it as the session cookie and
// writes the token response.
func (h *Handler) WriteSession(w http.ResponseWriter, u *user.User, status int) error {
	session, err := h.tokens.CreateSessionToken(u.ID.Hex())
	if err != nil {
		return err
	}

	expires := session.ExpiresAt
	if h.cookie.TTL > 0 {
		expires = h.now().Add(h.cookie.TTL)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	core.JSON(w, status, core.Envelope{
		Status: core.StatusSuccess,
		Token:  session.Token,
		User:   u,
	})
	return nil
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
