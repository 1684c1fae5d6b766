// AngelaMos | 2026
// populate.go

package event

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carterperez-dev/templates/events-api/internal/user"
)

// UserSource loads active users by id.
type UserSource interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*user.User, error)
}

// Populator expands attendee ids with one batched user lookup per call.
// Ids of missing or deactivated users are dropped from the expansion.
type Populator struct {
	users UserSource
}

func NewPopulator(users UserSource) *Populator {
	return &Populator{users: users}
}

func (p *Populator) Populate(ctx context.Context, events []*Event, paths []string) error {
	if !slices.Contains(paths, AttendeesPath) {
		return nil
	}

	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range e.Attendees {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	byID := make(map[primitive.ObjectID]Attendee, len(ids))
	if len(ids) > 0 {
		users, err := p.users.GetByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("populate attendees: %w", err)
		}
		for _, u := range users {
			byID[u.ID] = Attendee{
				ID:    u.ID,
				Name:  u.Name,
				Email: u.Email,
				Photo: u.Photo,
				Role:  u.Role,
			}
		}
	}

	for _, e := range events {
		expanded := make([]Attendee, 0, len(e.Attendees))
		for _, id := range e.Attendees {
			if a, ok := byID[id]; ok {
				expanded = append(expanded, a)
			}
		}
		e.attendees = expanded
	}
	return nil
}
