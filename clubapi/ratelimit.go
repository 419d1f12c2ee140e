package clubapi

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedClient throttles every facility call through a shared limiter
// so concurrent monitors cannot stampede the external API.
type rateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// RateLimited wraps c with a global limiter of perSec calls per second.
// A perSec of 0 (or less) disables throttling and returns c unchanged,
// matching the source design which imposes no cap.
func RateLimited(c Client, perSec float64) Client {
	if perSec <= 0 {
		return c
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedClient{
		inner:   c,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

func (r *rateLimitedClient) AvailableDates(ctx context.Context, tags map[string]string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.AvailableDates(ctx, tags)
}

func (r *rateLimitedClient) Intervals(ctx context.Context, date string, tags map[string]string, memberID string) ([]IntervalGroup, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Intervals(ctx, date, tags, memberID)
}

func (r *rateLimitedClient) CreateBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return BookingConfirmation{}, err
	}
	return r.inner.CreateBooking(ctx, req)
}

func (r *rateLimitedClient) CancelBooking(ctx context.Context, voucher string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.inner.CancelBooking(ctx, voucher)
}

func (r *rateLimitedClient) ListBookings(ctx context.Context, memberID string) ([]Booking, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.ListBookings(ctx, memberID)
}
