package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithUserLock serializes attendance writes per user. It opens a transaction,
// takes a transaction-scoped advisory lock keyed on the user's UUID, and runs
// fn with a SessionStore bound to that transaction, so every query in the
// critical section uses the connection that holds the lock. The lock is
// released by Postgres at commit or rollback, including when the request
// context is canceled mid-section.
func (r *Repository) WithUserLock(ctx context.Context, userUUID uuid.UUID, fn func(ctx context.Context, s SessionStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userUUID.String()); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	if err := fn(ctx, &sessionTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// sessionTx runs the critical-section queries on the transaction that holds
// the advisory lock.
type sessionTx struct {
	tx *sql.Tx
}

// Latest returns the user's most recent record by check-in time, or nil when
// the user has none.
func (s *sessionTx) Latest(ctx context.Context, userUUID uuid.UUID) (*Record, error) {
	row := s.tx.QueryRowContext(ctx, `
		SELECT id, user_uuid, in_time, out_time
		FROM attendance
		WHERE user_uuid = $1
		ORDER BY in_time DESC
		LIMIT 1
	`, userUUID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Open inserts a fresh check-in with no checkout and returns it with its
// server-assigned id.
func (s *sessionTx) Open(ctx context.Context, userUUID uuid.UUID, in time.Time) (Record, error) {
	rec := Record{UserUUID: userUUID, In: in}
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO attendance (user_uuid, in_time)
		VALUES ($1, $2)
		RETURNING id
	`, userUUID, in).Scan(&rec.ID)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Close sets the checkout time on an open record, keeping its id. Closing an
// already-closed record fails: closed records are immutable.
func (s *sessionTx) Close(ctx context.Context, id int64, out time.Time) (Record, error) {
	row := s.tx.QueryRowContext(ctx, `
		UPDATE attendance
		SET out_time = $2
		WHERE id = $1 AND out_time IS NULL
		RETURNING id, user_uuid, in_time, out_time
	`, id, out)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("record %d is not an open session", id)
	}
	if err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// ListAll returns every record, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `SELECT id, user_uuid, in_time, out_time FROM attendance ORDER BY in_time DESC`)
}

// ByDate returns records whose check-in falls on the given day.
func (r *Repository) ByDate(ctx context.Context, day time.Time) ([]Record, error) {
	start := day.Truncate(24 * time.Hour)
	return r.query(ctx, `
		SELECT id, user_uuid, in_time, out_time
		FROM attendance
		WHERE in_time >= $1 AND in_time < $1 + interval '1 day'
		ORDER BY in_time
	`, start)
}

// ByUser returns a user's records, newest first.
func (r *Repository) ByUser(ctx context.Context, userUUID uuid.UUID) ([]Record, error) {
	return r.query(ctx, `
		SELECT id, user_uuid, in_time, out_time
		FROM attendance
		WHERE user_uuid = $1
		ORDER BY in_time DESC
	`, userUUID)
}

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var out sql.NullTime
	if err := row.Scan(&rec.ID, &rec.UserUUID, &rec.In, &out); err != nil {
		return nil, err
	}
	if out.Valid {
		t := out.Time
		rec.Out = &t
	}
	return &rec, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
