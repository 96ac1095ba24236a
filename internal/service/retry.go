package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
	"github.com/cloo-solutions/cryptoadvisor/internal/openai"
)

// RetryPolicy bounds the exponential backoff applied to upstream calls.
// Each attempt gets its own Timeout when it is positive.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Timeout         time.Duration
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, fails permanently or attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() error {
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := fn(attemptCtx)
		if err != nil && (ctx.Err() != nil || isPermanent(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, p.newBackOff(ctx))
}

// isPermanent reports errors that a retry cannot fix.
func isPermanent(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation, domain.ErrCodeNotFound, domain.ErrCodeUnauthorized:
		return true
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, openai.ErrEmptyText) ||
		errors.Is(err, openai.ErrWrongDimensions) ||
		errors.Is(err, openai.ErrContentPolicy) ||
		errors.Is(err, news.ErrNoKeywords) {
		return true
	}
	var newsErr *news.APIError
	if errors.As(err, &newsErr) {
		return newsErr.StatusCode >= 400 && newsErr.StatusCode < 500 && newsErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}
