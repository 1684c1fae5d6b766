// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
)

const passwordRouteMessage = "This route is not for password updates. Please use /updateMyPassword."

type Service struct {
	repo      Repository
	validator *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		validator: core.NewValidator(),
	}
}

func (s *Service) List(ctx context.Context, q *query.Query) ([]*User, error) {
	users, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

func (s *Service) Get(
	ctx context.Context,
	id primitive.ObjectID,
	opts FindOptions,
) (*User, error) {
	return s.repo.GetByID(ctx, id, opts)
}

// UpdateMe applies the name and photo fields of req to the current user.
// Requests carrying password fields are rejected before anything changes.
func (s *Service) UpdateMe(
	ctx context.Context,
	current *User,
	req UpdateMeRequest,
) (*User, error) {
	if current == nil {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	if req.TouchesPassword() {
		return nil, core.ValidationError(passwordRouteMessage)
	}

	updated := *current
	req.apply(&updated)
	updated.Normalize()

	if err := s.validator.Struct(&updated); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteMe deactivates the current user. The record stays in the
// collection and disappears from default reads.
func (s *Service) DeleteMe(ctx context.Context, current *User) error {
	if current == nil {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}
	return s.repo.Deactivate(ctx, current.ID)
}

func (s *Service) Count(ctx context.Context, opts FindOptions) (int64, error) {
	return s.repo.Count(ctx, opts)
}
