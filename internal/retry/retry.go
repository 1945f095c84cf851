// Package retry wraps single upstream calls with bounded retries and
// exponential backoff. It absorbs transient failures (timeout,
// unreachable, rate_limited); a malformed response surfaces
// immediately because retrying cannot fix a schema mismatch.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/model"
)

// Policy bounds the retry behavior for one upstream call.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// BackoffBase is the delay before the first retry; subsequent
	// retries double it
	BackoffBase time.Duration

	// MaxDelay caps the backoff growth
	MaxDelay time.Duration
}

// Default returns the policy used when configuration supplies nothing.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Backoff returns the delay applied after the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BackoffBase << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Execute runs the call until it succeeds, fails non-retryably, or the
// attempt budget is spent. It always returns a Result, never panics,
// and stops early when ctx is done.
func (p Policy) Execute(ctx context.Context, call func(context.Context) model.Result) model.Result {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last model.Result
	for attempt := 0; attempt < attempts; attempt++ {
		last = call(ctx)
		if last.OK() || !last.Err.Kind.Retryable() {
			return last
		}

		if attempt == attempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"kind":    last.Err.Kind,
			"delay":   delay,
		}).Debug("Upstream call failed, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return last
		}
	}
	return last
}
