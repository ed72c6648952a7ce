package provider

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit paces calls to p at rps requests per second. A non-positive
// rps returns p unchanged.
func WithRateLimit(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Complete(ctx context.Context, req *Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: Transient, Provider: r.Name(), Message: "rate limiter: " + err.Error(), Cause: err}
	}
	return r.Provider.Complete(ctx, req)
}

type timed struct {
	Provider
	timeout time.Duration
}

// WithTimeout bounds each call to d. Expired calls surface as transient errors;
// cancellation by the caller is passed through untouched.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timed{Provider: p, timeout: d}
}

func (t *timed) Complete(ctx context.Context, req *Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.Provider.Complete(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", &Error{Kind: Transient, Provider: t.Name(), Message: "timed out after " + t.timeout.String(), Cause: err}
	}
	return out, err
}
