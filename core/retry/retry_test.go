package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var (
	errTransient = errors.New("connection reset")
	errFatal     = errors.New("permission denied")
)

func fastOpts() Options {
	return Options{
		BaseDelay:   time.Millisecond,
		ShouldRetry: func(err error) bool { return errors.Is(err, errTransient) },
	}
}

func TestDo_Attempts(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int // number of leading failures
		failWith     error
		wantAttempts int
		wantErr      error
	}{
		{name: "success first try", failures: 0, wantAttempts: 1},
		{name: "recovers after two failures", failures: 2, failWith: errTransient, wantAttempts: 3},
		{name: "exhausts default retries", failures: 100, failWith: errTransient, wantAttempts: 4, wantErr: errTransient},
		{name: "custom max retries", maxRetries: 1, failures: 100, failWith: errTransient, wantAttempts: 2, wantErr: errTransient},
		{name: "non retryable fails once", failures: 100, failWith: errFatal, wantAttempts: 1, wantErr: errFatal},
		{name: "no retries", maxRetries: NoRetries, failures: 100, failWith: errTransient, wantAttempts: 1, wantErr: errTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fastOpts()
			opts.MaxRetries = tt.maxRetries

			var attempts int
			err := Do(context.Background(), opts, func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo_OnRetry(t *testing.T) {
	opts := fastOpts()
	type call struct{ attempt, max int }
	var calls []call
	opts.OnRetry = func(attempt, max int, err error) {
		assert.Equal(t, errTransient, err)
		calls = append(calls, call{attempt, max})
	}

	err := Do(context.Background(), opts, func(context.Context) error { return errTransient })
	assert.Error(t, err)
	assert.Equal(t, []call{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestDo_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOpts()
	opts.BaseDelay = time.Hour

	var attempts int
	err := Do(ctx, opts, func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	})
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, attempts)
}

func TestDelay(t *testing.T) {
	assert.Equal(t, time.Second, Delay(time.Second, 2, 0))
	assert.Equal(t, 2*time.Second, Delay(time.Second, 2, 1))
	assert.Equal(t, 4*time.Second, Delay(time.Second, 2, 2))
	assert.Equal(t, 300*time.Millisecond, Delay(100*time.Millisecond, 3, 1))
}
