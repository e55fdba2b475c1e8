package notification

import "context"

// Sender delivers an already rendered message over one transport. It knows
// nothing about passes or schedules.
type Sender interface {
	Channel() Channel
	// Send delivers body to recipient. subject is ignored by transports without one.
	Send(ctx context.Context, recipient, subject, body string) error
}
