// AngelaMos | 2026
// base.go

package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carterperez-dev/templates/events-api/internal/core"
)

// Base carries the identity and bookkeeping fields shared by every stored
// document. Embed it by value.
type Base struct {
	ID        primitive.ObjectID `bson:"_id"       json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	Version   int64              `bson:"__v"       json:"-"`
}

func (b *Base) Meta() *Base {
	return b
}

// Document is satisfied by any struct that embeds Base.
type Document interface {
	Meta() *Base
}

func (b *Base) touchNew(now time.Time) {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	b.Version = 0
}

// ParseID converts a hex path parameter into an ObjectID.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, core.ValidationError(
			fmt.Sprintf("Invalid _id: %s", raw),
		)
	}
	return id, nil
}

func meta(doc any) (*Base, error) {
	d, ok := doc.(Document)
	if !ok {
		return nil, fmt.Errorf("store: %T does not embed store.Base", doc)
	}
	return d.Meta(), nil
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return core.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, core.ErrDuplicateKey)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
