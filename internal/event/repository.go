// AngelaMos | 2026
// repository.go

package event

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carterperez-dev/templates/events-api/internal/store"
)

// Repository is the events collection plus its index definitions.
type Repository struct {
	*store.Collection[Event]
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		Collection: store.NewCollection[Event](db.Collection(CollectionName)),
	}
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	return r.CreateIndexes(ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("date"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "price", Value: 1}},
			Options: options.Index().SetName("price"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "attendees", Value: 1}},
			Options: options.Index().SetName("attendees"),
		},
	)
}

// Counter returns a func counting every stored event.
func (r *Repository) Counter() func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		return r.Count(ctx, bson.M{})
	}
}
