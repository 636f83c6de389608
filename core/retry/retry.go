// Package retry re-runs failing read operations with exponential backoff.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
)

// Options tunes Do. Zero values fall back to the defaults below.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64

	// ShouldRetry reports whether err is transient. Nil retries every error.
	ShouldRetry func(err error) bool
	// OnRetry observes each retry before its wait; attempt is 1-based.
	OnRetry func(attempt, max int, err error)
}

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMultiplier = 2.0
)

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.Multiplier <= 0 {
		o.Multiplier = DefaultMultiplier
	}
	return o
}

// NoRetries disables retrying when passed as Options.MaxRetries.
const NoRetries = -1

// Delay returns the wait before the n-th retry (0-based): base * multiplier^n.
func Delay(base time.Duration, multiplier float64, n int) time.Duration {
	return time.Duration(float64(base) * math.Pow(multiplier, float64(n)))
}

// Do calls fn until it succeeds, returns a non-retryable error, or MaxRetries
// retries have been spent; at most MaxRetries+1 calls are made.
// A canceled ctx stops the loop and Do returns ctx.Err().
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	var (
		lastErr error
		n       int
	)
	exp := retry.BackoffFunc(func() (time.Duration, bool) {
		d := Delay(opts.BaseDelay, opts.Multiplier, n)
		n++
		if opts.OnRetry != nil {
			opts.OnRetry(n, opts.MaxRetries, lastErr)
		}
		return d, false
	})

	err := retry.Do(ctx, retry.WithMaxRetries(uint64(opts.MaxRetries), exp), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return ctx.Err()
	}
	return err
}
