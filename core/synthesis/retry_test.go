package synthesis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayBounds(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, Base: 3 * time.Second, Cap: 30 * time.Second}

	for retry := 1; retry <= 3; retry++ {
		delay := policy.Delay(retry)
		base := time.Duration(3*(1<<(retry-1))) * time.Second
		assert.GreaterOrEqual(t, delay, base, "retry %d below base", retry)
		assert.Less(t, delay, base+DefaultJitter, "retry %d above base+jitter", retry)
	}

	// base*2^4 = 48s exceeds the cap
	assert.Equal(t, 30*time.Second, policy.Delay(5))
}

func TestRetryExhaustsTransientErrors(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 3, Base: time.Millisecond, Cap: 2 * time.Millisecond}

	attempts := 0
	_, err := retryWithBackoff(context.Background(), policy, func(ctx context.Context) (ProviderResponse, error) {
		attempts++
		return nil, &ProviderError{StatusCode: 503, Message: "Service Unavailable"}
	}, isTransient)

	require.Error(t, err)
	assert.Equal(t, policy.MaxRetries+1, attempts)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 503, provErr.StatusCode)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, Base: time.Millisecond, Cap: 2 * time.Millisecond}

	attempts := 0
	_, err := retryWithBackoff(context.Background(), policy, func(ctx context.Context) (ProviderResponse, error) {
		attempts++
		return nil, &ProviderError{StatusCode: 400, Message: "bad request"}
	}, isTransient)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryReturnsFirstSuccess(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, Base: time.Millisecond, Cap: 2 * time.Millisecond}

	attempts := 0
	resp, err := retryWithBackoff(context.Background(), policy, func(ctx context.Context) (ProviderResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, &ProviderError{StatusCode: 503, Message: "busy"}
		}
		return RawAudio{Bytes: []byte("RIFF"), Mime: "audio/wav"}, nil
	}, isTransient)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.IsType(t, RawAudio{}, resp)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, Base: time.Minute, Cap: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retryWithBackoff(ctx, policy, func(ctx context.Context) (ProviderResponse, error) {
		return nil, &ProviderError{StatusCode: 503, Message: "busy"}
	}, isTransient)

	require.ErrorIs(t, err, context.Canceled)
}

func TestTransienceClassification(t *testing.T) {
	transient := []error{
		&ProviderError{StatusCode: 429, Message: "Too Many Requests"},
		&ProviderError{StatusCode: 503, Message: "Service Unavailable"},
		&ProviderError{StatusCode: 500, Message: "internal"},
		&ProviderError{StatusCode: 502, Message: "bad gateway"},
		&ProviderError{StatusCode: 200, Message: "model is busy, try again later"},
		context.DeadlineExceeded,
		errors.New("read tcp: connection reset by peer"),
		errors.New("request timeout"),
	}
	for _, err := range transient {
		assert.True(t, isTransient(err), "expected transient: %v", err)
	}

	permanent := []error{
		&ProviderError{StatusCode: 400, Message: "bad request"},
		&ProviderError{StatusCode: 401, Message: "unauthorized"},
		&ProviderError{StatusCode: 404, Message: "model not found"},
		errors.New("malformed payload"),
	}
	for _, err := range permanent {
		assert.False(t, isTransient(err), "expected permanent: %v", err)
	}
}

func TestFailureReasonClassification(t *testing.T) {
	assert.Contains(t, failureReason(&ProviderError{StatusCode: 429}), "Too many requests")
	assert.Contains(t, failureReason(&ProviderError{StatusCode: 503}), "temporarily unavailable")
	assert.Contains(t, failureReason(context.DeadlineExceeded), "timed out")
	assert.Contains(t, failureReason(errors.New("request timeout")), "timed out")
	assert.Contains(t, failureReason(&ProviderError{StatusCode: 500}), "currently unavailable")
}
