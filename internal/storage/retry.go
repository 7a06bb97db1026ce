package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds retries of transient storage failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// CalculateBackoff returns the wait before retry number retry (0-based).
func (p RetryPolicy) CalculateBackoff(retry int) time.Duration {
	backoff := p.InitialBackoff
	for i := 0; i < retry; i++ {
		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return backoff
}

// Retrying wraps a ByteStore and retries ErrTransient failures.
type Retrying struct {
	store  ByteStore
	policy RetryPolicy
	log    zerolog.Logger
	sleep  func(context.Context, time.Duration) error
}

func NewRetrying(store ByteStore, policy RetryPolicy, log zerolog.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{store: store, policy: policy, log: log, sleep: sleepContext}
}

func (r *Retrying) Fetch(ctx context.Context, location string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "fetch", location, func() error {
		var err error
		data, err = r.store.Fetch(ctx, location)
		return err
	})
	return data, err
}

func (r *Retrying) Store(ctx context.Context, data []byte, hint, contentType string) (string, error) {
	var loc string
	err := r.do(ctx, "store", hint, func() error {
		var err error
		loc, err = r.store.Store(ctx, data, hint, contentType)
		return err
	})
	return loc, err
}

func (r *Retrying) do(ctx context.Context, op, location string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		wait := r.policy.CalculateBackoff(attempt - 1)
		r.log.Warn().Err(err).
			Str("op", op).
			Str("location", location).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("storage: retrying")
		if serr := r.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
