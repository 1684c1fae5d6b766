// AngelaMos | 2026
// repository.go

package user

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
	"github.com/carterperez-dev/templates/events-api/internal/store"
)

const CollectionName = "users"

// FindOptions widens a read past the soft-delete filter.
type FindOptions struct {
	IncludeInactive bool
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id primitive.ObjectID, opts FindOptions) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	List(ctx context.Context, q *query.Query) ([]*User, error)
	Save(ctx context.Context, u *User) error
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, now time.Time) error
	RehashPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	Count(ctx context.Context, opts FindOptions) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

// activeFilter hides soft-deleted users. Documents without the field
// count as active.
var activeFilter = bson.M{"active": bson.M{"$ne": false}}

type repository struct {
	users *store.Collection[User]
}

func NewRepository(db *mongo.Database) Repository {
	return &repository{
		users: store.NewCollection[User](
			db.Collection(CollectionName),
			store.WithBaseFilter(activeFilter),
		),
	}
}

func (r *repository) scope(opts FindOptions) *store.Collection[User] {
	if opts.IncludeInactive {
		return r.users.Unscoped()
	}
	return r.users
}

func (r *repository) EnsureIndexes(ctx context.Context) error {
	return r.users.CreateIndexes(ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "passwordResetToken", Value: 1}},
			Options: options.Index().
				SetName("password_reset_token").
				SetSparse(true),
		},
	)
}

func (r *repository) Create(ctx context.Context, u *User) error {
	if err := r.users.Insert(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id primitive.ObjectID,
	opts FindOptions,
) (*User, error) {
	u, err := r.scope(opts).FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.users.FindOne(ctx, bson.M{"email": NormalizeEmail(email)})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*User, error) {
	if len(ids) == 0 {
		return []*User{}, nil
	}

	users, err := r.users.FindMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("get users by id: %w", err)
	}
	return users, nil
}

func (r *repository) GetByResetToken(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (*User, error) {
	u, err := r.users.FindOne(ctx, resetTokenFilter(tokenHash, now))
	if err != nil {
		return nil, fmt.Errorf("get user by reset token: %w", err)
	}
	return u, nil
}

func (r *repository) List(ctx context.Context, q *query.Query) ([]*User, error) {
	users, err := r.users.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *repository) Save(ctx context.Context, u *User) error {
	if err := r.users.Replace(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	ok, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if !ok {
		return fmt.Errorf("deactivate user: %w", core.ErrNotFound)
	}
	return nil
}

// SetResetToken stores only the token hash. It bypasses entity
// validation since no other field changes.
func (r *repository) SetResetToken(
	ctx context.Context,
	id primitive.ObjectID,
	tokenHash string,
	expires time.Time,
) error {
	ok, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"passwordResetToken":   tokenHash,
			"passwordResetExpires": expires,
		}},
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if !ok {
		return fmt.Errorf("set reset token: %w", core.ErrNotFound)
	}
	return nil
}

// ClearResetToken removes the reset token only while the stored hash is
// still tokenHash, so a newer token issued concurrently survives.
func (r *repository) ClearResetToken(
	ctx context.Context,
	id primitive.ObjectID,
	tokenHash string,
) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id, "passwordResetToken": tokenHash},
		bson.M{"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		}},
	)
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// ResetPassword consumes a valid reset token and sets the new password
// in one atomic update. A token that was already consumed, expired or
// never existed yields core.ErrNotFound.
func (r *repository) ResetPassword(
	ctx context.Context,
	tokenHash, passwordHash string,
	now time.Time,
) (*User, error) {
	u, err := r.users.FindOneAndUpdate(ctx,
		resetTokenFilter(tokenHash, now),
		bson.M{
			"$set": bson.M{
				"password":          passwordHash,
				"passwordChangedAt": changedAt(now),
			},
			"$unset": bson.M{
				"passwordResetToken":   "",
				"passwordResetExpires": "",
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	return u, nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id primitive.ObjectID,
	passwordHash string,
	now time.Time,
) error {
	ok, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": changedAt(now),
		}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if !ok {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	return nil
}

// RehashPassword replaces the stored hash without touching
// passwordChangedAt, so existing sessions stay valid.
func (r *repository) RehashPassword(
	ctx context.Context,
	id primitive.ObjectID,
	passwordHash string,
) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"password": passwordHash}},
	)
	if err != nil {
		return fmt.Errorf("rehash password: %w", err)
	}
	return nil
}

func (r *repository) Count(ctx context.Context, opts FindOptions) (int64, error) {
	n, err := r.scope(opts).Count(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func resetTokenFilter(tokenHash string, now time.Time) bson.M {
	return bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": bson.M{"$gt": now},
	}
}

// changedAt backdates the password change by one second so a token
// issued in the same second as the change is still accepted.
func changedAt(now time.Time) time.Time {
	return now.Add(-time.Second).UTC()
}
