// AngelaMos | 2026
// handler.go

package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
	"github.com/carterperez-dev/templates/events-api/internal/store"
)

// SessionWriter issues a fresh session for u and writes the token
// response.
type SessionWriter interface {
	WriteSession(w http.ResponseWriter, u *User, status int) error
}

type Middleware = func(http.Handler) http.Handler

type Handler struct {
	service  *Service
	sessions SessionWriter
}

func NewHandler(service *Service, sessions SessionWriter) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
	}
}

// RegisterRoutes mounts the session-required user routes. upload may be
// nil when no image host is configured.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	rs *core.Responder,
	protect, adminOnly, upload Middleware,
) {
	r.Group(func(r chi.Router) {
		r.Use(protect)

		r.Get("/", rs.Wrap(h.List))
		r.Get("/me", rs.Wrap(h.GetMe))
		if upload != nil {
			r.With(upload).Patch("/updateMe", rs.Wrap(h.UpdateMe))
		} else {
			r.Patch("/updateMe", rs.Wrap(h.UpdateMe))
		}
		r.Delete("/deleteMe", rs.Wrap(h.DeleteMe))

		r.With(adminOnly).Get("/{id}", rs.Wrap(h.GetUser))
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	q, err := query.Build(r.URL.Query(), Schema)
	if err != nil {
		return err
	}

	users, err := h.service.List(r.Context(), q)
	if err != nil {
		return err
	}

	shaped, err := q.Shape(users)
	if err != nil {
		return err
	}

	count := len(users)
	core.JSON(w, http.StatusOK, core.Envelope{
		Status:  core.StatusSuccess,
		Results: &count,
		Users:   shaped,
	})
	return nil
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) error {
	current := Current(r.Context())
	if current == nil {
		return core.UnauthorizedError("")
	}

	core.JSON(w, http.StatusOK, core.Envelope{
		Status: core.StatusSuccess,
		User:   current,
	})
	return nil
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) error {
	var req UpdateMeRequest
	if err := core.DecodeBody(r, &req); err != nil {
		return err
	}

	updated, err := h.service.UpdateMe(r.Context(), Current(r.Context()), req)
	if err != nil {
		return err
	}

	return h.sessions.WriteSession(w, updated, http.StatusOK)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) error {
	if err := h.service.DeleteMe(r.Context(), Current(r.Context())); err != nil {
		return err
	}

	core.NoContent(w)
	return nil
}

// GetUser reads any account by id, deactivated ones included.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) error {
	id, err := store.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	u, err := h.service.Get(r.Context(), id, FindOptions{IncludeInactive: true})
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundError("User not found")
	}
	if err != nil {
		return err
	}

	core.JSON(w, http.StatusOK, core.Envelope{
		Status: core.StatusSuccess,
		User:   u,
	})
	return nil
}
