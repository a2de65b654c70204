package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Hints are the alternative keys usable to locate a user. Only the first
// present hint is consulted: a primary uuid beats an email beats an
// alternate-id pair, and a failing earlier hint fails loudly instead of
// falling through to the next one.
type Hints struct {
	UUID     *string
	Email    *string
	AltField *string
	AltValue *string
}

// Directory is the subset of user lookups resolution needs. Lookups report
// ok=false when nothing matched and reserve the error for storage failures.
type Directory interface {
	UUIDByEmail(ctx context.Context, email string) (uuid.UUID, bool, error)
	UUIDByAltID(ctx context.Context, field, value string) (uuid.UUID, bool, error)
}

var (
	ErrMissingIdentity = errors.New("you must specify an identifying hint")
	ErrMalformedUUID   = errors.New("the supplied uuid is not valid")
	ErrEmailNotFound   = errors.New("no user with that email address")
	ErrAltIDNotFound   = errors.New("no user with that alternate id")
)

// Resolver maps identity hints to a single user uuid. The profile lookup and
// attendance logging both go through this one chain so the precedence policy
// cannot drift between them.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver backed by a user directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the uuid the hints identify, or fails with an error naming
// the hint that was attempted.
func (r *Resolver) Resolve(ctx context.Context, h Hints) (uuid.UUID, error) {
	switch {
	case h.UUID != nil:
		id, err := uuid.Parse(*h.UUID)
		if err != nil {
			return uuid.Nil, ErrMalformedUUID
		}
		return id, nil

	case h.Email != nil:
		id, ok, err := r.dir.UUIDByEmail(ctx, *h.Email)
		if err != nil {
			return uuid.Nil, fmt.Errorf("look up by email: %w", err)
		}
		if !ok {
			return uuid.Nil, ErrEmailNotFound
		}
		return id, nil

	case h.AltField != nil && h.AltValue != nil:
		id, ok, err := r.dir.UUIDByAltID(ctx, *h.AltField, *h.AltValue)
		if err != nil {
			return uuid.Nil, fmt.Errorf("look up by alternate id: %w", err)
		}
		if !ok {
			return uuid.Nil, ErrAltIDNotFound
		}
		return id, nil
	}
	return uuid.Nil, ErrMissingIdentity
}
