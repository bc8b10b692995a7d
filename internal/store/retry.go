package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ Store = (*Retrying)(nil)

// Retrying retries failed writes of the wrapped store with exponential backoff.
type Retrying struct {
	Store
	maxElapsed time.Duration
	logger     zerolog.Logger
}

// WithRetry wraps s. A non-positive maxElapsed selects five seconds.
func WithRetry(s Store, maxElapsed time.Duration) *Retrying {
	if maxElapsed <= 0 {
		maxElapsed = 5 * time.Second
	}
	return &Retrying{
		Store:      s,
		maxElapsed: maxElapsed,
		logger:     log.With().Str("component", "store").Logger(),
	}
}

func (r *Retrying) Save(ctx context.Context, key string, v any) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := r.Store.Save(ctx, key, v)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("Save failed")
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = r.maxElapsed

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
