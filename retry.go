package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const maxAttempts = 5

// retrySleep waits out the backoff unless the request context dies
// first. Swapped out in tests.
var retrySleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withRetry runs fn up to five times, sleeping attempt+1 seconds after
// a contention failure (1s, 2s, 3s, 4s). Whether an error counts as
// contention is decided by the backend dialect. Any other error, and
// the fifth failure, propagate to the caller unchanged.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !s.dialect.retryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("database busy, retrying")
		if werr := retrySleep(ctx, time.Duration(attempt+1)*time.Second); werr != nil {
			return err
		}
	}
	return err
}
