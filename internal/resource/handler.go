// AngelaMos | 2026
// handler.go

package resource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
	"github.com/carterperez-dev/templates/events-api/internal/store"
)

const (
	IDParam          = "id"
	retrievedMessage = "Successfully retrieved one document"
)

// Store is the persistence surface the generic handlers need.
// *store.Collection satisfies it.
type Store[T any] interface {
	Insert(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*T, error)
	Find(ctx context.Context, q *query.Query) ([]*T, error)
	Replace(ctx context.Context, doc *T) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
}

// Populator expands reference paths after the primary read.
type Populator[T any] interface {
	Populate(ctx context.Context, docs []*T, paths []string) error
}

// Normalizer is implemented by documents that trim input and fill
// defaults before validation.
type Normalizer interface {
	Normalize()
}

type Options[T any] struct {
	Name      string
	Store     Store[T]
	Populator Populator[T]
	Schema    query.Schema
	Populate  []string
	Validator *validator.Validate
}

// Handler serves create, read, update and delete for one collection.
type Handler[T any] struct {
	name      string
	store     Store[T]
	populator Populator[T]
	schema    query.Schema
	populate  []string
	validator *validator.Validate
}

func New[T any](opts Options[T]) *Handler[T] {
	v := opts.Validator
	if v == nil {
		v = core.NewValidator()
	}

	return &Handler[T]{
		name:      opts.Name,
		store:     opts.Store,
		populator: opts.Populator,
		schema:    opts.Schema,
		populate:  opts.Populate,
		validator: v,
	}
}

// RegisterRoutes mounts the five operations on r. Collection-level
// routes go on "/", document routes on "/{id}". writes wrap only the
// create and update routes.
func (h *Handler[T]) RegisterRoutes(
	r chi.Router,
	rs *core.Responder,
	writes ...func(http.Handler) http.Handler,
) {
	r.Get("/", rs.Wrap(h.GetAll))
	r.With(writes...).Post("/", rs.Wrap(h.Create))
	r.Get("/{id}", rs.Wrap(h.GetOne))
	r.With(writes...).Patch("/{id}", rs.Wrap(h.Update))
	r.Delete("/{id}", rs.Wrap(h.Delete))
}

func (h *Handler[T]) Create(w http.ResponseWriter, r *http.Request) error {
	ctx, span := core.StartSpan(r.Context(), h.name+".create")
	defer span.End()

	doc := new(T)
	if err := core.DecodeBody(r, doc); err != nil {
		return err
	}

	if err := resetBase(doc); err != nil {
		return err
	}

	if err := h.prepare(doc); err != nil {
		return err
	}

	if err := h.store.Insert(ctx, doc); err != nil {
		return fmt.Errorf("create %s: %w", h.name, err)
	}

	core.Created(w, doc)
	return nil
}

func (h *Handler[T]) GetOne(w http.ResponseWriter, r *http.Request) error {
	id, err := store.ParseID(chi.URLParam(r, IDParam))
	if err != nil {
		return err
	}

	ctx, span := core.StartSpan(r.Context(), h.name+".get_one",
		attribute.String("document.id", id.Hex()),
	)
	defer span.End()

	doc, err := h.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get %s: %w", h.name, err)
	}

	if err := h.expand(ctx, []*T{doc}, h.populate); err != nil {
		return err
	}

	core.JSON(w, http.StatusOK, core.Envelope{
		Status:  core.StatusSuccess,
		Message: retrievedMessage,
		Data:    &core.Data{Data: doc},
	})
	return nil
}

func (h *Handler[T]) GetAll(w http.ResponseWriter, r *http.Request) error {
	q, err := query.Build(r.URL.Query(), h.schema, h.populate...)
	if err != nil {
		return err
	}

	ctx, span := core.StartSpan(r.Context(), h.name+".get_all",
		attribute.Int64("query.page", q.Page),
		attribute.Int64("query.limit", q.Limit),
	)
	defer span.End()

	docs, err := h.store.Find(ctx, q)
	if err != nil {
		return fmt.Errorf("list %s: %w", h.name, err)
	}
	if docs == nil {
		docs = []*T{}
	}

	if err := h.expand(ctx, docs, q.Populate); err != nil {
		return err
	}

	shaped, err := q.Shape(docs)
	if err != nil {
		return err
	}

	core.List(w, shaped, len(docs))
	return nil
}

// Update loads the stored document, applies the body on top of it, and
// writes it back with a version check. Identity and bookkeeping fields
// cannot be changed through the body.
func (h *Handler[T]) Update(w http.ResponseWriter, r *http.Request) error {
	id, err := store.ParseID(chi.URLParam(r, IDParam))
	if err != nil {
		return err
	}

	ctx, span := core.StartSpan(r.Context(), h.name+".update",
		attribute.String("document.id", id.Hex()),
	)
	defer span.End()

	doc, err := h.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("update %s: %w", h.name, err)
	}

	b, err := baseOf(doc)
	if err != nil {
		return err
	}
	saved := *b

	if err := core.DecodeBody(r, doc); err != nil {
		return err
	}
	*b = saved

	if err := h.prepare(doc); err != nil {
		return err
	}

	if err := h.store.Replace(ctx, doc); err != nil {
		return fmt.Errorf("update %s: %w", h.name, err)
	}

	core.OK(w, doc)
	return nil
}

func (h *Handler[T]) Delete(w http.ResponseWriter, r *http.Request) error {
	id, err := store.ParseID(chi.URLParam(r, IDParam))
	if err != nil {
		return err
	}

	ctx, span := core.StartSpan(r.Context(), h.name+".delete",
		attribute.String("document.id", id.Hex()),
	)
	defer span.End()

	if err := h.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", h.name, err)
	}

	core.NoContent(w)
	return nil
}

func (h *Handler[T]) prepare(doc *T) error {
	if n, ok := any(doc).(Normalizer); ok {
		n.Normalize()
	}
	return h.validator.Struct(doc)
}

func (h *Handler[T]) expand(ctx context.Context, docs []*T, paths []string) error {
	if h.populator == nil || len(paths) == 0 || len(docs) == 0 {
		return nil
	}
	if err := h.populator.Populate(ctx, docs, paths); err != nil {
		return fmt.Errorf("populate %s: %w", h.name, err)
	}
	return nil
}

func baseOf(doc any) (*store.Base, error) {
	d, ok := doc.(store.Document)
	if !ok {
		return nil, fmt.Errorf("resource: %T does not embed store.Base", doc)
	}
	return d.Meta(), nil
}

func resetBase(doc any) error {
	b, err := baseOf(doc)
	if err != nil {
		return err
	}
	*b = store.Base{}
	return nil
}
