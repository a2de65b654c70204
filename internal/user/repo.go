package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository persists users in Postgres. Alternate ids live in a jsonb
// column keyed by field name.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `uuid, full_name, email, phone_number, alt_ids, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var altIDs []byte
	var updated sql.NullTime
	if err := row.Scan(&u.UUID, &u.FullName, &u.Email, &u.PhoneNumber, &altIDs, &u.CreatedAt, &updated); err != nil {
		return nil, err
	}
	if len(altIDs) > 0 {
		if err := json.Unmarshal(altIDs, &u.AltIDs); err != nil {
			return nil, fmt.Errorf("decode alt_ids: %w", err)
		}
	}
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return &u, nil
}

// encodeAltIDs renders the map as a jsonb literal. A string rather than
// []byte so the driver binds it as text, not bytea.
func encodeAltIDs(m map[string]string) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode alt_ids: %w", err)
	}
	return string(b), nil
}

// Get returns a user by uuid, or nil when none exists.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Insert writes a new user.
func (r *Repository) Insert(ctx context.Context, u User) error {
	altIDs, err := encodeAltIDs(u.AltIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (uuid, full_name, email, phone_number, alt_ids, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, u.UUID, u.FullName, u.Email, u.PhoneNumber, altIDs, u.CreatedAt)
	return err
}

// Save overwrites all mutable fields of an existing user.
func (r *Repository) Save(ctx context.Context, u User) error {
	altIDs, err := encodeAltIDs(u.AltIDs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = $2, email = $3, phone_number = $4, alt_ids = $5, updated_at = $6
		WHERE uuid = $1
	`, u.UUID, u.FullName, u.Email, u.PhoneNumber, altIDs, u.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name`)
}

// SearchByName returns users whose full name contains the fragment.
func (r *Repository) SearchByName(ctx context.Context, fragment string) ([]User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE full_name ILIKE '%' || $1 || '%' ORDER BY full_name`, fragment)
}

// MatchByName returns users whose full name matches exactly.
func (r *Repository) MatchByName(ctx context.Context, fullName string) ([]User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE full_name = $1 ORDER BY created_at`, fullName)
}

// UUIDByEmail resolves an exact email match.
func (r *Repository) UUIDByEmail(ctx context.Context, email string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `SELECT uuid FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// UUIDByAltID resolves a user whose alt_ids mapping carries the given value
// under the given field name.
func (r *Repository) UUIDByAltID(ctx context.Context, field, value string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `SELECT uuid FROM users WHERE alt_ids ->> $1 = $2`, field, value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
