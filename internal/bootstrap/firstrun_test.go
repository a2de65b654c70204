package bootstrap_test

import (
	"context"
	"errors"
	"testing"

	"attendance/internal/bootstrap"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	n   int64
	err error
}

func (f *fakeCounter) CountTokens(context.Context) (int64, error) {
	return f.n, f.err
}

func TestDetectFreshStore(t *testing.T) {
	f, err := bootstrap.Detect(context.Background(), &fakeCounter{n: 0}, zerolog.Nop())
	require.NoError(t, err)
	require.True(t, f.Active())
}

func TestDetectExistingTokens(t *testing.T) {
	f, err := bootstrap.Detect(context.Background(), &fakeCounter{n: 3}, zerolog.Nop())
	require.NoError(t, err)
	require.False(t, f.Active())
}

func TestDetectCountFailureIsFatal(t *testing.T) {
	_, err := bootstrap.Detect(context.Background(), &fakeCounter{err: errors.New("db down")}, zerolog.Nop())
	require.Error(t, err)
}

func TestRecheckFlipsOnce(t *testing.T) {
	ctx := context.Background()
	counter := &fakeCounter{n: 0}
	f, err := bootstrap.Detect(ctx, counter, zerolog.Nop())
	require.NoError(t, err)

	f.Recheck(ctx)
	require.True(t, f.Active(), "no token issued yet")

	counter.n = 1
	f.Recheck(ctx)
	require.False(t, f.Active(), "a token exists, bypass must end")

	// The flip is one-way even if the store later looks empty again.
	counter.n = 0
	f.Recheck(ctx)
	require.False(t, f.Active())
}

func TestRecheckFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	counter := &fakeCounter{n: 0}
	f, err := bootstrap.Detect(ctx, counter, zerolog.Nop())
	require.NoError(t, err)

	counter.err = errors.New("count failed")
	f.Recheck(ctx)
	require.True(t, f.Active(), "a failed re-check must not end first-run mode")

	counter.err = nil
	counter.n = 1
	f.Recheck(ctx)
	require.False(t, f.Active())
}
