package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// TokenCounter reports how many tokens have ever been issued.
type TokenCounter interface {
	CountTokens(ctx context.Context) (int64, error)
}

// FirstRun gates authentication for a freshly initialized store. While
// active, requests run without a token so the first administrator token can
// be issued. The flag flips to inactive at most once, after a request
// completes with at least one token persisted, and never flips back.
type FirstRun struct {
	counter TokenCounter
	log     zerolog.Logger

	mu     sync.RWMutex
	active bool
}

// Detect computes the initial state by counting persisted tokens. A count
// failure here is returned to the caller: the process must not start without
// knowing whether enforcement applies.
func Detect(ctx context.Context, counter TokenCounter, log zerolog.Logger) (*FirstRun, error) {
	n, err := counter.CountTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("first-run check: %w", err)
	}
	f := &FirstRun{counter: counter, log: log, active: n == 0}
	log.Info().Bool("first_run", f.active).Msg("first-run status")
	return f, nil
}

// Active reports whether authentication is currently bypassed.
func (f *FirstRun) Active() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// Recheck re-counts tokens after a request served under first-run mode and
// turns the bypass off once at least one token exists. A count failure is
// not fatal: the bypass stays up and a warning is logged, keeping the
// bootstrap path available rather than enforcement.
func (f *FirstRun) Recheck(ctx context.Context) {
	if !f.Active() {
		return
	}
	n, err := f.counter.CountTokens(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("first-run re-check failed, staying in first-run mode")
		return
	}
	if n == 0 {
		return
	}
	f.mu.Lock()
	if f.active {
		f.active = false
		f.log.Info().Msg("disabling first-run mode: a token has been issued")
	}
	f.mu.Unlock()
}
