package token

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"attendance/internal/capability"
)

// Repository persists token records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertToken writes a new record. Records are never mutated afterwards.
func (r *Repository) InsertToken(ctx context.Context, rec Record) error {
	var nbf any
	if rec.NotBefore != nil {
		nbf = *rec.NotBefore
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (uuid, description, cap, created_at, nbf, exp)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, rec.UUID, rec.Description, string(rec.Cap), rec.CreatedAt, nbf, rec.Expiration)
	return err
}

// CountTokens reports how many tokens have ever been issued. Drives the
// first-run check.
func (r *Repository) CountTokens(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&n)
	return n, err
}

// ListTokens returns every issued record, newest first.
func (r *Repository) ListTokens(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uuid, description, cap, created_at, nbf, exp
		FROM tokens
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var capStr string
		var nbf sql.NullTime
		if err := rows.Scan(&rec.UUID, &rec.Description, &capStr, &rec.CreatedAt, &nbf, &rec.Expiration); err != nil {
			return nil, err
		}
		cap, err := capability.Parse(capStr)
		if err != nil {
			return nil, err
		}
		rec.Cap = cap
		if nbf.Valid {
			t := nbf.Time
			rec.NotBefore = &t
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteToken removes a persisted record. Verification is signature-only, so
// deleting a record does not invalidate the signed token today; the row is
// the hook a revocation cross-check would key on.
func (r *Repository) DeleteToken(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE uuid = $1`, id)
	return err
}
