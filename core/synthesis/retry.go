package synthesis

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cruz-jay/beatbot/logger"
)

// BackoffPolicy bounds the provider retry loop. MaxRetries counts
// retries after the first attempt, so a policy of 5 allows 6 attempts
// in total.
type BackoffPolicy struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
}

// DefaultJitter is the upper bound of the random component added to
// each backoff delay.
const DefaultJitter = time.Second

// Delay returns the wait before retry n (1-indexed):
// min(base * 2^(n-1) + jitter, cap).
func (p BackoffPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	backoff := time.Duration(float64(p.Base) * math.Pow(2, float64(retry-1)))
	backoff += time.Duration(rand.Int63n(int64(DefaultJitter)))
	if backoff > p.Cap {
		backoff = p.Cap
	}
	return backoff
}

// retryWithBackoff runs attempt until it succeeds, the error is not
// retryable, or the policy is exhausted. The last error is returned
// on failure. Backoff waits respect ctx cancellation.
func retryWithBackoff(ctx context.Context, policy BackoffPolicy, attempt func(context.Context) (ProviderResponse, error), retryable func(error) bool) (ProviderResponse, error) {
	var lastErr error

	for try := 0; try <= policy.MaxRetries; try++ {
		resp, err := attempt(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if try == policy.MaxRetries {
			logger.Warn("synthesis retries exhausted",
				logger.Int("attempts", try+1),
				logger.ErrorField(err))
			break
		}
		if !retryable(err) {
			logger.Warn("synthesis error is not retryable, giving up",
				logger.Int("attempts", try+1),
				logger.ErrorField(err))
			break
		}

		delay := policy.Delay(try + 1)
		logger.Info("synthesis attempt failed, retrying",
			logger.Int("attempt", try+1),
			logger.Duration("delay", delay),
			logger.ErrorField(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
