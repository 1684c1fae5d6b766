// AngelaMos | 2026
// query.go

package query

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Query is the built collection query. Filter, Sort and Projection are
// ready to hand to the driver; Page and Limit are kept for the response.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Page       int64
	Limit      int64
	Skip       int64
	Populate   []string

	selection *selection
}

type selection struct {
	include bool
	fields  []string
	dropID  bool
}

func (q *Query) FindOptions() *options.FindOptions {
	return options.Find().
		SetSort(q.Sort).
		SetProjection(q.Projection).
		SetSkip(q.Skip).
		SetLimit(q.Limit)
}

// Shape applies the field selection to the JSON form of v, which may be a
// single document or a slice. Virtual fields produced by marshalers are
// dropped unless they were explicitly included, and the url virtual
// never outlives an excluded _id.
func (q *Query) Shape(v any) (any, error) {
	if q.selection == nil {
		return v, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("shape marshal: %w", err)
	}

	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err == nil {
		for i := range many {
			many[i] = q.selection.apply(many[i])
		}
		return many, nil
	}

	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("shape unmarshal: %w", err)
	}
	return q.selection.apply(one), nil
}

func (s *selection) apply(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}

	if !s.include {
		for _, f := range s.fields {
			delete(doc, f)
		}
		delete(doc, VersionField)
		if s.dropID {
			delete(doc, URLField)
		}
		return doc
	}

	out := make(map[string]any, len(s.fields)+1)
	if !s.dropID {
		if id, ok := doc[IDField]; ok {
			out[IDField] = id
		}
	}
	for _, f := range s.fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}
