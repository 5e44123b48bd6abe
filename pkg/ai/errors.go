// Package ai holds error classification and retry helpers shared by the
// chat completion providers.
package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var (
	// ErrRecoverable marks a temporary provider failure, such as a timeout,
	// rate limiting or a 5xx response. Retrying may succeed.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal marks a failure that retrying will not fix, such as a bad API
	// key or a malformed request.
	ErrFatal = errors.New("fatal provider error")
)

// RetryConfig configures Retry.
type RetryConfig struct {
	MaxRetries    int           // attempts after the first
	InitialDelay  time.Duration // delay before the first retry
	MaxDelay      time.Duration // cap on any single delay
	BackoffFactor float64       // delay multiplier per attempt
	JitterPercent float64       // random +/- share of each delay (0.0-1.0)
}

// DefaultRetryConfig is used by the serve command for the LLM provider.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    2,
	InitialDelay:  250 * time.Millisecond,
	MaxDelay:      2 * time.Second,
	BackoffFactor: 2.0,
	JitterPercent: 0.1,
}

func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ProviderError carries a provider failure together with its
// classification. errors.Is matches both the cause and ErrRecoverable or
// ErrFatal.
type ProviderError struct {
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() []error {
	if e.Retryable {
		return []error{e.Err, ErrRecoverable}
	}
	return []error{e.Err, ErrFatal}
}

func NewRecoverableError(err error) error {
	return &ProviderError{Err: err, Retryable: true}
}

func NewFatalError(err error) error {
	return &ProviderError{Err: err, Retryable: false}
}

// Retry calls fn until it succeeds, fails with an error that is not
// recoverable, runs out of retries or ctx is done. The last error is
// returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !IsRecoverable(err) || attempt >= cfg.MaxRetries {
			return err
		}

		timer := time.NewTimer(jitter(delay, cfg.JitterPercent))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

func jitter(d time.Duration, percent float64) time.Duration {
	if percent <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * percent
	return d + time.Duration(spread*(2*rand.Float64()-1))
}
