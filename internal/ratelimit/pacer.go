package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests to services that publish no per-minute budget
// (storefront pages, Scryfall) but still expect polite clients.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one request per interval with the given burst.
func NewPacer(interval time.Duration, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, burst)}
}

// WaitForToken blocks until the pacer admits the next request.
func (p *Pacer) WaitForToken(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

var (
	_ Waiter = (*Bucket)(nil)
	_ Waiter = (*Pacer)(nil)
)
