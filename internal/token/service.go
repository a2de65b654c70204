package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"attendance/internal/capability"
)

// Record is the persisted side of an issued token. The signed bearer token
// embeds the record's uuid so any individual token can be traced back to it.
type Record struct {
	UUID        uuid.UUID             `json:"uuid"`
	Description string                `json:"description"`
	Cap         capability.Capability `json:"capability"`
	CreatedAt   time.Time             `json:"created_at"`
	NotBefore   *time.Time            `json:"nbf,omitempty"`
	Expiration  time.Time             `json:"exp"`
}

// Claims is the signed bundle handed to the bearer.
type Claims struct {
	UUID string                `json:"uuid"`
	Cap  capability.Capability `json:"cap"`
	jwt.RegisteredClaims
}

// Repo is what the service needs from persistence.
type Repo interface {
	InsertToken(ctx context.Context, rec Record) error
	CountTokens(ctx context.Context) (int64, error)
}

var (
	ErrSignature   = errors.New("the token signature is invalid")
	ErrExpired     = errors.New("the token has expired")
	ErrNotYetValid = errors.New("the token is not valid yet")
)

// Service issues and verifies capability tokens signed with ES256.
type Service struct {
	repo Repo
	keys *KeyPair
	now  func() time.Time
}

// NewService creates a token service bound to a repo and key material.
func NewService(repo Repo, keys *KeyPair) *Service {
	return &Service{repo: repo, keys: keys, now: time.Now}
}

// Issue persists a new token record and returns it together with the signed
// bearer token. The caller is responsible for the guard: issuance is only
// reachable by administrators or while first-run mode is active.
func (s *Service) Issue(ctx context.Context, description string, cap capability.Capability, notBefore *time.Time, expiration time.Time) (Record, string, error) {
	rec := Record{
		UUID:        uuid.New(),
		Description: description,
		Cap:         cap,
		CreatedAt:   s.now().UTC(),
		NotBefore:   notBefore,
		Expiration:  expiration,
	}
	claims := Claims{
		UUID: rec.UUID.String(),
		Cap:  cap,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
		},
	}
	if notBefore != nil {
		claims.NotBefore = jwt.NewNumericDate(*notBefore)
	}

	// Sign before persisting: a record without a usable token would still
	// count toward the stored-token total and could end first-run mode with
	// nothing to authenticate with.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.keys.Private)
	if err != nil {
		return Record{}, "", fmt.Errorf("sign token: %w", err)
	}
	if err := s.repo.InsertToken(ctx, rec); err != nil {
		return Record{}, "", fmt.Errorf("persist token record: %w", err)
	}
	return rec, signed, nil
}

// Verify validates the signature and temporal claims and returns the
// embedded capability. Verification is signature-only: the persisted record
// is not consulted here.
func (s *Service) Verify(tokenStr string) (capability.Capability, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.keys.Public, nil
	}, jwt.WithTimeFunc(s.now))

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "", ErrNotYetValid
	default:
		return "", ErrSignature
	}

	cap, err := capability.Parse(string(claims.Cap))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return cap, nil
}
