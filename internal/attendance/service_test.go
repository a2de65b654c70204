package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
}

func (f *fakeStore) WithUserLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context, s SessionStore) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx, f)
}

func (f *fakeStore) Latest(_ context.Context, userUUID uuid.UUID) (*Record, error) {
	var latest *Record
	for i := range f.records {
		rec := f.records[i]
		if rec.UserUUID != userUUID {
			continue
		}
		if latest == nil || rec.In.After(latest.In) {
			latest = &f.records[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) Open(_ context.Context, userUUID uuid.UUID, in time.Time) (Record, error) {
	f.nextID++
	rec := Record{ID: f.nextID, UserUUID: userUUID, In: in}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) Close(_ context.Context, id int64, out time.Time) (Record, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			t := out
			f.records[i].Out = &t
			return f.records[i], nil
		}
	}
	return Record{}, nil
}

func newTestService(store *fakeStore, start time.Time) (*Service, *time.Time) {
	svc := NewService(store, DefaultWindow)
	current := start
	svc.now = func() time.Time { return current }
	return svc, &current
}

func TestLogToggle(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newTestService(store, start)
	user := uuid.New()

	// First call: fresh user checks in.
	first, branch, err := svc.Log(ctx, user)
	require.NoError(t, err)
	require.Equal(t, Opened, branch)
	require.Nil(t, first.Out)

	// Second call within the window: same record closes.
	*clock = start.Add(2 * time.Hour)
	second, branch, err := svc.Log(ctx, user)
	require.NoError(t, err)
	require.Equal(t, Closed, branch)
	require.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Out)
	require.True(t, !second.Out.Before(second.In))

	// Third call with the previous session closed: new check-in.
	*clock = start.Add(2*time.Hour + time.Minute)
	third, branch, err := svc.Log(ctx, user)
	require.NoError(t, err)
	require.Equal(t, Opened, branch)
	require.NotEqual(t, first.ID, third.ID)
	require.Nil(t, third.Out)
}

func TestLogWindowBoundaryInclusive(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newTestService(store, start)
	user := uuid.New()

	opened, _, err := svc.Log(ctx, user)
	require.NoError(t, err)

	// Exactly 3h after check-in still counts as a checkout.
	*clock = start.Add(3 * time.Hour)
	rec, branch, err := svc.Log(ctx, user)
	require.NoError(t, err)
	require.Equal(t, Closed, branch)
	require.Equal(t, opened.ID, rec.ID)
}

func TestLogStaleSessionStartsNewRecord(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newTestService(store, start)
	user := uuid.New()

	stale, _, err := svc.Log(ctx, user)
	require.NoError(t, err)

	// One second past the window: new check-in, the stale session stays open.
	*clock = start.Add(3*time.Hour + time.Second)
	rec, branch, err := svc.Log(ctx, user)
	require.NoError(t, err)
	require.Equal(t, Opened, branch)
	require.NotEqual(t, stale.ID, rec.ID)

	kept, err := store.Latest(ctx, user)
	require.NoError(t, err)
	require.Equal(t, rec.ID, kept.ID)
	for _, r := range store.records {
		if r.ID == stale.ID {
			require.Nil(t, r.Out, "a stale open session is never auto-closed")
		}
	}
}

func TestLogUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newTestService(store, start)
	alice, bob := uuid.New(), uuid.New()

	_, branch, err := svc.Log(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, Opened, branch)

	// Bob's first call is a check-in regardless of Alice's open session.
	*clock = start.Add(time.Hour)
	_, branch, err = svc.Log(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, Opened, branch)
}
