package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one attendance row. A nil Out marks an open session; once Out is
// set the record is closed and never mutated again.
type Record struct {
	ID       int64      `json:"id"`
	UserUUID uuid.UUID  `json:"user_uuid"`
	In       time.Time  `json:"in_time"`
	Out      *time.Time `json:"out_time,omitempty"`
}

// SessionStore is the view of the store handed to the per-user critical
// section. Its queries must run inside that section, on the same connection
// that holds the lock.
type SessionStore interface {
	Latest(ctx context.Context, userUUID uuid.UUID) (*Record, error)
	Open(ctx context.Context, userUUID uuid.UUID, in time.Time) (Record, error)
	Close(ctx context.Context, id int64, out time.Time) (Record, error)
}

// Store persists attendance rows. WithUserLock must serialize the callback
// per user so the latest-row read and the following write form one critical
// section: without it two concurrent calls race on "is there an open
// session".
type Store interface {
	WithUserLock(ctx context.Context, userUUID uuid.UUID, fn func(ctx context.Context, s SessionStore) error) error
}

// DefaultWindow bounds how long an open session can still be closed by a
// second call.
const DefaultWindow = 3 * time.Hour

// Branches a Log call can take.
const (
	Opened = "session_opened"
	Closed = "session_closed"
)

// Service drives the check-in/check-out toggle.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{store: store, window: window, now: time.Now}
}

// Log toggles the user's session. With no open session it checks the user
// in. With an open session no older than the window it checks them out by
// closing that same record. An open session older than the window is left
// open and a fresh check-in is recorded instead, so a forgotten checkout
// never blocks future attendance. Callers never state their intent; the
// branch taken is reported alongside the record.
func (s *Service) Log(ctx context.Context, userUUID uuid.UUID) (Record, string, error) {
	var rec Record
	var branch string
	err := s.store.WithUserLock(ctx, userUUID, func(ctx context.Context, sess SessionStore) error {
		latest, err := sess.Latest(ctx, userUUID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if latest != nil && latest.Out == nil && now.Sub(latest.In) <= s.window {
			branch = Closed
			rec, err = sess.Close(ctx, latest.ID, now)
			return err
		}
		branch = Opened
		rec, err = sess.Open(ctx, userUUID, now)
		return err
	})
	if err != nil {
		return Record{}, "", err
	}
	return rec, branch, nil
}
