// AngelaMos | 2026
// handler.go

package event

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
	"github.com/carterperez-dev/templates/events-api/internal/resource"
)

type Handler struct {
	events    resource.Store[Event]
	populator *Populator
	crud      *resource.Handler[Event]
	now       func() time.Time
}

func NewHandler(events resource.Store[Event], users UserSource) *Handler {
	populator := NewPopulator(users)
	return &Handler{
		events:    events,
		populator: populator,
		crud: resource.New(resource.Options[Event]{
			Name:      "event",
			Store:     events,
			Populator: populator,
			Schema:    Schema,
			Populate:  []string{AttendeesPath},
		}),
		now: time.Now,
	}
}

// RegisterRoutes mounts the generic CRUD routes plus the upcoming and
// past listings. upload may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	rs *core.Responder,
	upload func(http.Handler) http.Handler,
) {
	r.Get("/upcoming", rs.Wrap(h.Upcoming))
	r.Get("/past", rs.Wrap(h.Past))

	if upload != nil {
		h.crud.RegisterRoutes(r, rs, upload)
		return
	}
	h.crud.RegisterRoutes(r, rs)
}

// Upcoming lists events dated now or later, soonest first unless the
// client sorts.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) error {
	return h.listByDate(w, r, "$gte", 1)
}

// Past lists events dated before now, most recent first unless the
// client sorts.
func (h *Handler) Past(w http.ResponseWriter, r *http.Request) error {
	return h.listByDate(w, r, "$lt", -1)
}

func (h *Handler) listByDate(w http.ResponseWriter, r *http.Request, op string, dir int) error {
	params := r.URL.Query()
	base := bson.M{"date": bson.M{op: h.now().UTC()}}

	q, err := query.New(base, params, Schema).
		Filter().
		Sort().
		LimitFields().
		Paginate().
		Populate(AttendeesPath).
		Query()
	if err != nil {
		return err
	}
	if !params.Has("sort") {
		q.Sort = bson.D{{Key: "date", Value: dir}, {Key: query.IDField, Value: dir}}
	}

	events, err := h.events.Find(r.Context(), q)
	if err != nil {
		return fmt.Errorf("list events by date: %w", err)
	}
	if events == nil {
		events = []*Event{}
	}

	if err := h.populator.Populate(r.Context(), events, q.Populate); err != nil {
		return err
	}

	shaped, err := q.Shape(events)
	if err != nil {
		return err
	}

	core.List(w, shaped, len(events))
	return nil
}
