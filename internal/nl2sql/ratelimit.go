package nl2sql

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Translator
	limiter *rate.Limiter
}

// RateLimited bounds calls to next. Waiting honors the request context, so a
// caller that gives up never reaches the provider. rps <= 0 returns next as is.
func RateLimited(next Translator, rps float64, burst int) Translator {
	if next == nil || rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Translate(ctx context.Context, req Request) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("translation rate limit: %w", err)
	}
	return r.next.Translate(ctx, req)
}
