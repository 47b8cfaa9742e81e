// Package retry wraps an arbitrary call with bounded retries and
// exponential backoff plus jitter. Only transient_http and rate_limited
// errors are retried; everything else is raised immediately.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/hkshon115/semanticarranger/internal/errs"
)

// Options configures the retry handler. InitialDelay is the sleep before
// the second attempt; it doubles per subsequent attempt.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Jitter is the +/- fraction applied to each computed delay, e.g. 0.2
	// for +/-20%. Zero defaults to 0.2.
	Jitter float64
	// Rand, when non-nil, is used instead of the package-level source.
	// Tests can inject a deterministic source.
	Rand *rand.Rand
}

func (o Options) attempts() int {
	if o.MaxAttempts < 1 {
		return 1
	}
	return o.MaxAttempts
}

func (o Options) jitter() float64 {
	if o.Jitter <= 0 {
		return 0.2
	}
	return o.Jitter
}

// Do runs f, retrying on retryable classified errors up to
// Options.MaxAttempts (inclusive of the initial try). The initial try runs
// without a sleep; the sleep before attempt k (1-indexed, k >= 2) is
// InitialDelay * 2^(k-2), jittered by +/-Jitter. The final failure is
// returned with the attempt count attached.
func Do(ctx context.Context, opts Options, f func(ctx context.Context) error) error {
	attempts := opts.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(opts, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := f(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		kind := errs.KindOf(err)
		if !errs.Retryable(kind) {
			// auth_failure, invalid_request, content_policy and all other
			// kinds are never retried.
			return err
		}
		if attempt == attempts {
			break
		}
	}
	if ce, ok := errs.As(lastErr); ok {
		return ce.WithAttempts(attempts)
	}
	return lastErr
}

// backoffDelay computes InitialDelay * 2^(attempt-2) (the sleep happens
// before attempt `attempt`, so the first retry uses exponent 0) with
// +/-jitter applied.
func backoffDelay(opts Options, attempt int) time.Duration {
	base := opts.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	exp := attempt - 2
	if exp < 0 {
		exp = 0
	}
	delay := float64(base) * pow2(exp)

	j := opts.jitter()
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// Uniform in [-j, +j] of delay.
	factor := 1 + (r.Float64()*2-1)*j
	return time.Duration(delay * factor)
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}
