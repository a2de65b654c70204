package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists users.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	Insert(ctx context.Context, u User) error
	Save(ctx context.Context, u User) error
}

var ErrNotFound = errors.New("user not found")

// Service creates and updates directory entries.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create registers a new user with a server-assigned uuid.
func (s *Service) Create(ctx context.Context, fullName, email string, phone *string, altIDs map[string]string) (User, error) {
	if fullName == "" || email == "" {
		return User{}, errors.New("full name and email are required")
	}
	u := User{
		UUID:        uuid.New(),
		FullName:    fullName,
		Email:       email,
		PhoneNumber: phone,
		AltIDs:      altIDs,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Update applies a merge-patch: only the fields present in the patch change,
// everything else keeps its prior value.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return User{}, ErrNotFound
	}
	u.Apply(p, s.now())
	if err := s.store.Save(ctx, *u); err != nil {
		return User{}, fmt.Errorf("save user: %w", err)
	}
	return *u, nil
}
