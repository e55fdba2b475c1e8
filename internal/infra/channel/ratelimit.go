package channel

import (
	"context"
	"fmt"

	"bus_pass_service/internal/domain/notification"

	"golang.org/x/time/rate"
)

type rateLimitedSender struct {
	next    notification.Sender
	limiter *rate.Limiter
}

// RateLimited wraps a sender so that Send waits for a limiter token first.
// A nil limiter returns the sender unchanged.
func RateLimited(next notification.Sender, limiter *rate.Limiter) notification.Sender {
	if limiter == nil {
		return next
	}
	return &rateLimitedSender{next: next, limiter: limiter}
}

func (r *rateLimitedSender) Channel() notification.Channel {
	return r.next.Channel()
}

func (r *rateLimitedSender) Send(ctx context.Context, recipient, subject, body string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", r.next.Channel(), err)
	}
	return r.next.Send(ctx, recipient, subject, body)
}
