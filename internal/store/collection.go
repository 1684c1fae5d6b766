// AngelaMos | 2026
// collection.go

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
)

// Collection is a typed view of a Mongo collection. T must embed Base.
// A base filter, when set, is merged into every read and write so scoped
// records stay invisible unless Unscoped is used.
type Collection[T any] struct {
	coll       *mongo.Collection
	baseFilter bson.M
	now        func() time.Time
}

type Option func(*collectionOptions)

type collectionOptions struct {
	baseFilter bson.M
	now        func() time.Time
}

func WithBaseFilter(filter bson.M) Option {
	return func(o *collectionOptions) {
		o.baseFilter = filter
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *collectionOptions) {
		o.now = now
	}
}

func NewCollection[T any](coll *mongo.Collection, opts ...Option) *Collection[T] {
	o := collectionOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Collection[T]{
		coll:       coll,
		baseFilter: o.baseFilter,
		now:        o.now,
	}
}

// Unscoped returns a view without the base filter.
func (c *Collection[T]) Unscoped() *Collection[T] {
	return &Collection[T]{coll: c.coll, now: c.now}
}

func (c *Collection[T]) Name() string {
	return c.coll.Name()
}

func (c *Collection[T]) CreateIndexes(ctx context.Context, models ...mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes on %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	b, err := meta(doc)
	if err != nil {
		return err
	}
	b.touchNew(c.now().UTC())

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return translate("insert "+c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return c.FindOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) FindOne(
	ctx context.Context,
	filter bson.M,
	opts ...*options.FindOneOptions,
) (*T, error) {
	var doc T
	err := c.coll.FindOne(ctx, c.scoped(filter), opts...).Decode(&doc)
	if err != nil {
		return nil, translate("find one in "+c.coll.Name(), err)
	}
	return &doc, nil
}

// Find runs a built collection query. The base filter cannot be widened
// by the query since it is merged last.
func (c *Collection[T]) Find(ctx context.Context, q *query.Query) ([]*T, error) {
	return c.FindMany(ctx, q.Filter, q.FindOptions())
}

func (c *Collection[T]) FindMany(
	ctx context.Context,
	filter bson.M,
	opts ...*options.FindOptions,
) ([]*T, error) {
	cursor, err := c.coll.Find(ctx, c.scoped(filter), opts...)
	if err != nil {
		return nil, translate("find in "+c.coll.Name(), err)
	}
	defer cursor.Close(ctx) //nolint:errcheck

	docs := make([]*T, 0)
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
		}
		docs = append(docs, &doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, translate("iterate "+c.coll.Name(), err)
	}

	return docs, nil
}

func (c *Collection[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, c.scoped(filter))
	if err != nil {
		return 0, translate("count "+c.coll.Name(), err)
	}
	return n, nil
}

// Replace writes doc back only if the stored version still equals the
// version doc was loaded with. A lost race returns core.ErrConflict.
func (c *Collection[T]) Replace(ctx context.Context, doc *T) error {
	b, err := meta(doc)
	if err != nil {
		return err
	}

	loaded := b.Version
	prevUpdated := b.UpdatedAt
	b.Version = loaded + 1
	b.UpdatedAt = c.now().UTC()

	filter := bson.M{"_id": b.ID, "__v": loaded}
	res, err := c.coll.ReplaceOne(ctx, c.scoped(filter), doc)
	if err != nil {
		b.Version, b.UpdatedAt = loaded, prevUpdated
		return translate("replace in "+c.coll.Name(), err)
	}

	if res.MatchedCount == 0 {
		b.Version, b.UpdatedAt = loaded, prevUpdated
		n, err := c.Count(ctx, bson.M{"_id": b.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return core.ErrConflict
	}

	return nil
}

// UpdateOne applies update to the first document matching filter and
// reports whether one matched. updatedAt and the version are maintained.
func (c *Collection[T]) UpdateOne(ctx context.Context, filter, update bson.M) (bool, error) {
	res, err := c.coll.UpdateOne(ctx, c.scoped(filter), c.stamp(update))
	if err != nil {
		return false, translate("update in "+c.coll.Name(), err)
	}
	return res.MatchedCount > 0, nil
}

// FindOneAndUpdate atomically updates the first match and returns the
// document as it is after the update.
func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, filter, update bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	err := c.coll.FindOneAndUpdate(ctx, c.scoped(filter), c.stamp(update), opts).Decode(&doc)
	if err != nil {
		return nil, translate("find and update in "+c.coll.Name(), err)
	}
	return &doc, nil
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, c.scoped(bson.M{"_id": id}))
	if err != nil {
		return translate("delete from "+c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) scoped(filter bson.M) bson.M {
	return mergeFilter(filter, c.baseFilter)
}

func (c *Collection[T]) stamp(update bson.M) bson.M {
	return stampUpdate(update, c.now().UTC())
}

// mergeFilter combines a caller filter with a base filter. Keys present
// in both are joined with $and so neither side can override the other.
func mergeFilter(filter, base bson.M) bson.M {
	if len(base) == 0 {
		if filter == nil {
			return bson.M{}
		}
		return filter
	}

	out := make(bson.M, len(filter)+len(base))
	var clash []bson.M
	for k, v := range filter {
		out[k] = v
	}
	for k, v := range base {
		if existing, ok := out[k]; ok {
			clash = append(clash, bson.M{k: existing}, bson.M{k: v})
			delete(out, k)
			continue
		}
		out[k] = v
	}

	if len(clash) > 0 {
		if and, ok := out["$and"].([]bson.M); ok {
			clash = append(and, clash...)
		}
		out["$and"] = clash
	}

	return out
}

func stampUpdate(update bson.M, now time.Time) bson.M {
	out := make(bson.M, len(update)+2)
	for k, v := range update {
		out[k] = v
	}

	set := bson.M{}
	if existing, ok := out["$set"].(bson.M); ok {
		for k, v := range existing {
			set[k] = v
		}
	}
	set["updatedAt"] = now
	out["$set"] = set

	inc := bson.M{}
	if existing, ok := out["$inc"].(bson.M); ok {
		for k, v := range existing {
			inc[k] = v
		}
	}
	inc["__v"] = 1
	out["$inc"] = inc

	return out
}
