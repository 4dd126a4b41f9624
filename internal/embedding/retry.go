package embedding

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math/big"
	"net"
	"time"

	"atsmatch/internal/errors"
)

const maxBackoff = 30 * time.Second

// retryPolicy drives executeWithRetry for one provider.
type retryPolicy struct {
	provider   string
	maxRetries int
	timeout    time.Duration // per attempt; zero means no extra deadline
	baseDelay  time.Duration
	retryable  func(error) bool
	logger     *errors.Logger
}

// backoff returns 2^(attempt-1) * baseDelay plus up to 10% jitter, capped at 30s
func (p retryPolicy) backoff(attempt int) time.Duration {
	base := p.baseDelay << (attempt - 1)
	if base <= 0 || base > maxBackoff {
		base = maxBackoff
	}
	var jitter time.Duration
	if jitterMax := int64(base / 10); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(base+jitter, maxBackoff)
}

// executeWithRetry retries fn on transient errors with exponential backoff.
func executeWithRetry[T any](ctx context.Context, p retryPolicy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if p.logger != nil {
				p.logger.Warn("Retrying embedding request",
					"provider", p.provider,
					"operation", operation,
					"attempt", attempt,
					"max_retries", p.maxRetries,
					"error", lastErr.Error())
			}

			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := runAttempt(ctx, p.timeout, fn)
		if err == nil {
			if attempt > 0 && p.logger != nil {
				p.logger.Info("Embedding request succeeded after retry",
					"provider", p.provider,
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || p.retryable == nil || !p.retryable(err) {
			break
		}
	}

	return zero, fmt.Errorf("%s %s failed after %d retries: %w", p.provider, operation, p.maxRetries, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// isNetworkError reports connection-level failures, which are always retryable
func isNetworkError(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// wrapProviderError classifies a failed provider call into an AppError
func wrapProviderError(provider string, err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewEmbeddingError(errors.ErrCodeEmbeddingTimeout,
			fmt.Sprintf("%s embedding request timed out", provider), err)
	}
	return errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
		fmt.Sprintf("%s embedding request failed", provider), err)
}
