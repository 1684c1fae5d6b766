// AngelaMos | 2026
// entity.go

package user

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/events-api/internal/query"
	"github.com/carterperez-dev/templates/events-api/internal/store"
)

const DefaultPhoto = "https://i.ibb.co/dBQjP3N/profile.png"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
	RoleVendor     = "vendor"
	RoleModerator  = "moderator"
	RoleMember     = "member"
)

// User is the stored account. Credential and soft-delete fields are never
// serialized to clients.
type User struct {
	store.Base `bson:",inline"`

	Name       string `bson:"name"       json:"name"       validate:"required,min=3,max=25"`
	Email      string `bson:"email"      json:"email"      validate:"required,email"`
	Photo      string `bson:"photo"      json:"photo"`
	Role       string `bson:"role"       json:"role"       validate:"required,oneof=user admin super-admin vendor moderator member"`
	IsVerified bool   `bson:"isVerified" json:"isVerified"`

	Password             string     `bson:"password"                       json:"-"`
	Active               *bool      `bson:"active,omitempty"               json:"-"`
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty"    json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty"   json:"-"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`
}

// MarshalJSON hides the bookkeeping timestamps, which clients of the
// user resource never see.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		CreatedAt *time.Time `json:"createdAt,omitempty"`
		UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	}{plain: plain(u)})
}

// Normalize trims input and fills defaults the way a fresh document
// would have them.
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	u.Photo = strings.TrimSpace(u.Photo)
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Active == nil {
		active := true
		u.Active = &active
	}
}

func (u *User) IsActive() bool {
	return u.Active == nil || *u.Active
}

func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Comparison is at second precision, like the token itself.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Schema lists the user fields clients may filter, sort and select on.
var Schema = query.Schema{
	"_id":        query.ObjectID,
	"name":       query.String,
	"email":      query.String,
	"photo":      query.String,
	"role":       query.String,
	"isVerified": query.Bool,
	"createdAt":  query.Date,
	"updatedAt":  query.Date,
}

type contextKey struct{}

func WithCurrent(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// Current returns the authenticated user attached by the protect
// middleware, or nil.
func Current(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}
