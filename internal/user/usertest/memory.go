// AngelaMos | 2026
// memory.go

// Package usertest provides an in-memory user.Repository for tests.
package usertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/query"
	"github.com/carterperez-dev/templates/events-api/internal/user"
)

// Memory keeps users in a map and applies the same soft-delete and reset
// token rules as the Mongo repository.
type Memory struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*user.User
	order []primitive.ObjectID
	Now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[primitive.ObjectID]*user.User),
		Now:   time.Now,
	}
}

var _ user.Repository = (*Memory)(nil)

// Seed stores u as-is, assigning an id when missing.
func (m *Memory) Seed(u *user.User) *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(u)
	return clone(u)
}

// Raw returns the stored record regardless of its active flag.
func (m *Memory) Raw(id primitive.ObjectID) *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		return clone(u)
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *Memory) put(u *user.User) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := m.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, exists := m.users[u.ID]; !exists {
		m.order = append(m.order, u.ID)
	}
	m.users[u.ID] = clone(u)
}

func (m *Memory) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}

	u.ID = primitive.NilObjectID
	u.Version = 0
	m.put(u)
	return nil
}

func (m *Memory) GetByID(
	_ context.Context,
	id primitive.ObjectID,
	opts user.FindOptions,
) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || (!opts.IncludeInactive && !u.IsActive()) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return clone(u), nil
}

func (m *Memory) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = user.NormalizeEmail(email)
	for _, id := range m.order {
		u := m.users[id]
		if u.Email == email && u.IsActive() {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (m *Memory) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.IsActive() {
			out = append(out, clone(u))
		}
	}
	return out, nil
}

func (m *Memory) GetByResetToken(
	_ context.Context,
	tokenHash string,
	now time.Time,
) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u := m.findByToken(tokenHash, now); u != nil {
		return clone(u), nil
	}
	return nil, fmt.Errorf("get user by reset token: %w", core.ErrNotFound)
}

func (m *Memory) findByToken(tokenHash string, now time.Time) *user.User {
	for _, u := range m.users {
		if !u.IsActive() || u.PasswordResetToken == "" {
			continue
		}
		if u.PasswordResetToken != tokenHash || u.PasswordResetExpires == nil {
			continue
		}
		if u.PasswordResetExpires.After(now) {
			return u
		}
	}
	return nil
}

// List applies equality filters, the first sort key and pagination.
func (m *Memory) List(_ context.Context, q *query.Query) ([]*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*user.User
	for _, id := range m.order {
		u := m.users[id]
		if !u.IsActive() || !matches(u, q.Filter) {
			continue
		}
		matched = append(matched, clone(u))
	}

	if len(q.Sort) > 0 && q.Sort[0].Key == "name" {
		desc := q.Sort[0].Value == -1
		sort.SliceStable(matched, func(i, j int) bool {
			if desc {
				return matched[i].Name > matched[j].Name
			}
			return matched[i].Name < matched[j].Name
		})
	}

	start := min(int(q.Skip), len(matched))
	end := min(start+int(q.Limit), len(matched))
	return matched[start:end], nil
}

func matches(u *user.User, filter bson.M) bool {
	raw, err := bson.Marshal(u)
	if err != nil {
		return false
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return false
	}
	for k, want := range filter {
		if _, isOps := want.(bson.M); isOps {
			continue
		}
		if fmt.Sprint(doc[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (m *Memory) Save(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[u.ID]
	if !ok || !stored.IsActive() {
		return fmt.Errorf("save user: %w", core.ErrNotFound)
	}
	if stored.Version != u.Version {
		return fmt.Errorf("save user: %w", core.ErrConflict)
	}

	u.Version++
	u.UpdatedAt = m.Now().UTC()
	m.users[u.ID] = clone(u)
	return nil
}

func (m *Memory) update(id primitive.ObjectID, fn func(*user.User)) error {
	u, ok := m.users[id]
	if !ok || !u.IsActive() {
		return core.ErrNotFound
	}
	fn(u)
	u.Version++
	u.UpdatedAt = m.Now().UTC()
	return nil
}

func (m *Memory) Deactivate(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.update(id, func(u *user.User) {
		inactive := false
		u.Active = &inactive
	})
}

func (m *Memory) SetResetToken(
	_ context.Context,
	id primitive.ObjectID,
	tokenHash string,
	expires time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.update(id, func(u *user.User) {
		u.PasswordResetToken = tokenHash
		u.PasswordResetExpires = &expires
	})
}

func (m *Memory) ClearResetToken(
	_ context.Context,
	id primitive.ObjectID,
	tokenHash string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.PasswordResetToken != tokenHash {
		return nil
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return nil
}

func (m *Memory) ResetPassword(
	_ context.Context,
	tokenHash, passwordHash string,
	now time.Time,
) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.findByToken(tokenHash, now)
	if u == nil {
		return nil, fmt.Errorf("reset password: %w", core.ErrNotFound)
	}

	changed := now.Add(-time.Second).UTC()
	u.Password = passwordHash
	u.PasswordChangedAt = &changed
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	u.Version++
	return clone(u), nil
}

func (m *Memory) UpdatePassword(
	_ context.Context,
	id primitive.ObjectID,
	passwordHash string,
	now time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := now.Add(-time.Second).UTC()
	return m.update(id, func(u *user.User) {
		u.Password = passwordHash
		u.PasswordChangedAt = &changed
	})
}

func (m *Memory) RehashPassword(
	_ context.Context,
	id primitive.ObjectID,
	passwordHash string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.update(id, func(u *user.User) {
		u.Password = passwordHash
	})
}

func (m *Memory) Count(_ context.Context, opts user.FindOptions) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, u := range m.users {
		if opts.IncludeInactive || u.IsActive() {
			n++
		}
	}
	return n, nil
}

func (m *Memory) EnsureIndexes(context.Context) error {
	return nil
}

func clone(u *user.User) *user.User {
	cp := *u
	if u.Active != nil {
		v := *u.Active
		cp.Active = &v
	}
	if u.PasswordChangedAt != nil {
		v := *u.PasswordChangedAt
		cp.PasswordChangedAt = &v
	}
	if u.PasswordResetExpires != nil {
		v := *u.PasswordResetExpires
		cp.PasswordResetExpires = &v
	}
	return &cp
}
