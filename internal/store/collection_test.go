// AngelaMos | 2026
// collection_test.go

package store

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
)

var (
	visibleFilter = bson.M{"visible": bson.M{"$ne": false}}
	fixedNow      = time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
)

func newMock(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func widgets(mt *mtest.T) *Collection[widget] {
	return NewCollection[widget](mt.Coll,
		WithBaseFilter(visibleFilter),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

// sent decodes the document at path inside the next command the driver
// issued.
func sent(mt *mtest.T, name string, path ...string) bson.M {
	mt.Helper()

	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt, "no %s command was sent", name)
	require.Equal(mt, name, evt.CommandName)

	raw, err := evt.Command.LookupErr(path...)
	require.NoError(mt, err)

	var doc bson.M
	require.NoError(mt, bson.Unmarshal(raw.Document(), &doc))
	return doc
}

func countResponse(mt *mtest.T, n int64) bson.D {
	return mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func updateResponse(matched int) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: matched},
		bson.E{Key: "nModified", Value: matched},
	)
}

func TestCollectionFind(t *testing.T) {
	mt := newMock(t)

	mt.Run("scoped query with options", func(mt *mtest.T) {
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}, {Key: "name", Value: "a"}, {Key: "__v", Value: int64(2)}},
			bson.D{{Key: "_id", Value: second}, {Key: "name", Value: "b"}},
		))

		q, err := query.Build(url.Values{
			"name":  {"a"},
			"sort":  {"name"},
			"page":  {"2"},
			"limit": {"5"},
		}, query.Schema{"_id": query.ObjectID, "name": query.String, "createdAt": query.Date})
		require.NoError(mt, err)

		docs, err := widgets(mt).Find(context.Background(), q)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, first, docs[0].ID)
		assert.Equal(mt, int64(2), docs[0].Version)
		assert.Equal(mt, "b", docs[1].Name)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "find", evt.CommandName)

		var filter bson.M
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("filter").Document(), &filter))
		assert.Equal(mt, bson.M{"name": "a", "visible": bson.M{"$ne": false}}, filter)
		assert.Equal(mt, int64(5), evt.Command.Lookup("skip").AsInt64())
		assert.Equal(mt, int64(5), evt.Command.Lookup("limit").AsInt64())
	})

	mt.Run("query cannot widen the base filter", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		docs, err := widgets(mt).FindMany(context.Background(), bson.M{"visible": false})
		require.NoError(mt, err)
		assert.Empty(mt, docs)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "find", evt.CommandName)

		_, err = evt.Command.LookupErr("filter", "visible")
		assert.Error(mt, err, "base key must only appear inside $and")
		assert.False(mt, evt.Command.Lookup("filter", "$and", "0", "visible").Boolean())
		assert.False(mt, evt.Command.Lookup("filter", "$and", "1", "visible", "$ne").Boolean())
	})

	mt.Run("unscoped view drops the base filter", func(mt *mtest.T) {
		mt.AddMockResponses(countResponse(mt, 7))

		n, err := widgets(mt).Unscoped().Count(context.Background(), bson.M{})
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), n)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "aggregate", evt.CommandName)
		var match bson.M
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("pipeline", "0", "$match").Document(), &match))
		assert.Empty(mt, match)
	})

	mt.Run("missing document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := widgets(mt).FindByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, core.ErrNotFound)
	})
}

func TestCollectionReplaceIsVersioned(t *testing.T) {
	mt := newMock(t)

	tests := []struct {
		name      string
		responses func(mt *mtest.T) []bson.D
		wantErr   error
		version   int64
	}{
		{
			name: "stored version matches",
			responses: func(*mtest.T) []bson.D {
				return []bson.D{updateResponse(1)}
			},
			version: 4,
		},
		{
			name: "stored version moved on",
			responses: func(mt *mtest.T) []bson.D {
				return []bson.D{updateResponse(0), countResponse(mt, 1)}
			},
			wantErr: core.ErrConflict,
			version: 3,
		},
		{
			name: "document gone",
			responses: func(mt *mtest.T) []bson.D {
				return []bson.D{updateResponse(0), countResponse(mt, 0)}
			},
			wantErr: core.ErrNotFound,
			version: 3,
		},
	}

	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(tt.responses(mt)...)

			loadedAt := fixedNow.Add(-time.Hour)
			w := &widget{Name: "renamed"}
			w.ID = primitive.NewObjectID()
			w.Version = 3
			w.UpdatedAt = loadedAt

			err := widgets(mt).Replace(context.Background(), w)
			if tt.wantErr != nil {
				assert.ErrorIs(mt, err, tt.wantErr)
				assert.Equal(mt, loadedAt, w.UpdatedAt)
			} else {
				require.NoError(mt, err)
				assert.Equal(mt, fixedNow, w.UpdatedAt)
			}
			assert.Equal(mt, tt.version, w.Version)

			filter := sent(mt, "update", "updates", "0", "q")
			assert.Equal(mt, bson.M{
				"_id":     w.ID,
				"__v":     int64(3),
				"visible": bson.M{"$ne": false},
			}, filter)
		})
	}
}

func TestCollectionReplaceWritesNextVersion(t *testing.T) {
	mt := newMock(t)

	mt.Run("replacement document", func(mt *mtest.T) {
		mt.AddMockResponses(updateResponse(1))

		w := &widget{Name: "renamed"}
		w.ID = primitive.NewObjectID()
		w.Version = 3
		require.NoError(mt, widgets(mt).Replace(context.Background(), w))

		evt := mt.GetStartedEvent()
		require.Equal(mt, "update", evt.CommandName)

		var replacement bson.M
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("updates", "0", "u").Document(), &replacement))
		assert.Equal(mt, int64(4), replacement["__v"])
		assert.Equal(mt, "renamed", replacement["name"])
		assert.Equal(mt, primitive.NewDateTimeFromTime(fixedNow), replacement["updatedAt"])
	})
}

func TestCollectionUpdateOne(t *testing.T) {
	mt := newMock(t)

	mt.Run("stamps and scopes the update", func(mt *mtest.T) {
		mt.AddMockResponses(updateResponse(1))

		id := primitive.NewObjectID()
		ok, err := widgets(mt).UpdateOne(context.Background(),
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"name": "b"}},
		)
		require.NoError(mt, err)
		assert.True(mt, ok)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "update", evt.CommandName)

		var filter, update bson.M
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("updates", "0", "q").Document(), &filter))
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("updates", "0", "u").Document(), &update))

		assert.Equal(mt, bson.M{"_id": id, "visible": bson.M{"$ne": false}}, filter)
		assert.Equal(mt, bson.M{
			"name":      "b",
			"updatedAt": primitive.NewDateTimeFromTime(fixedNow),
		}, update["$set"])
		assert.Equal(mt, bson.M{"__v": int32(1)}, update["$inc"])
	})

	mt.Run("nothing matched", func(mt *mtest.T) {
		mt.AddMockResponses(updateResponse(0))

		ok, err := widgets(mt).UpdateOne(context.Background(),
			bson.M{"_id": primitive.NewObjectID()},
			bson.M{"$set": bson.M{"name": "b"}},
		)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		_, err := widgets(mt).UpdateOne(context.Background(),
			bson.M{"_id": primitive.NewObjectID()},
			bson.M{"$set": bson.M{"name": "taken"}},
		)
		assert.ErrorIs(mt, err, core.ErrDuplicateKey)
	})
}

func TestCollectionFindOneAndUpdate(t *testing.T) {
	mt := newMock(t)

	mt.Run("returns the updated document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: bson.D{{Key: "_id", Value: id}, {Key: "name", Value: "after"}, {Key: "__v", Value: int64(1)}},
		}))

		doc, err := widgets(mt).FindOneAndUpdate(context.Background(),
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"name": "after"}},
		)
		require.NoError(mt, err)
		assert.Equal(mt, "after", doc.Name)
		assert.Equal(mt, int64(1), doc.Version)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "findAndModify", evt.CommandName)
		assert.True(mt, evt.Command.Lookup("new").Boolean())

		var filter bson.M
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("query").Document(), &filter))
		assert.Equal(mt, bson.M{"_id": id, "visible": bson.M{"$ne": false}}, filter)
	})

	mt.Run("no match", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := widgets(mt).FindOneAndUpdate(context.Background(),
			bson.M{"_id": primitive.NewObjectID()},
			bson.M{"$set": bson.M{"name": "after"}},
		)
		assert.ErrorIs(mt, err, core.ErrNotFound)
	})
}

func TestCollectionDeleteByID(t *testing.T) {
	mt := newMock(t)

	tests := []struct {
		name    string
		deleted int
		wantErr error
	}{
		{name: "deleted", deleted: 1},
		{name: "missing", deleted: 0, wantErr: core.ErrNotFound},
	}

	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: tt.deleted}))

			id := primitive.NewObjectID()
			err := widgets(mt).DeleteByID(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(mt, err, tt.wantErr)
			} else {
				assert.NoError(mt, err)
			}

			filter := sent(mt, "delete", "deletes", "0", "q")
			assert.Equal(mt, bson.M{"_id": id, "visible": bson.M{"$ne": false}}, filter)
		})
	}
}

func TestCollectionInsert(t *testing.T) {
	mt := newMock(t)

	mt.Run("assigns bookkeeping fields", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		w := &widget{Name: "new"}
		require.NoError(mt, widgets(mt).Insert(context.Background(), w))
		assert.False(mt, w.ID.IsZero())
		assert.Equal(mt, fixedNow, w.CreatedAt)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "insert", evt.CommandName)

		var doc bson.M
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("documents", "0").Document(), &doc))
		assert.Equal(mt, w.ID, doc["_id"])
		assert.Equal(mt, int64(0), doc["__v"])
		assert.Equal(mt, primitive.NewDateTimeFromTime(fixedNow), doc["createdAt"])
	})
}
