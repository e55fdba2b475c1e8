package channel

import (
	"context"
	"errors"
	"fmt"

	"bus_pass_service/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// SMSBackend is one concrete SMS provider.
type SMSBackend interface {
	Name() string
	SendSMS(ctx context.Context, to, body string) error
}

// SMSSender tries its backends in order and stops at the first success.
type SMSSender struct {
	backends        []SMSBackend
	fallbackOnError bool
	logger          *logrus.Entry
}

// NewSMSSender builds the SMS channel. With no backends every message is
// logged only. With fallbackOnError a message that no backend could deliver
// is logged and reported as delivered.
func NewSMSSender(logger *logrus.Entry, fallbackOnError bool, backends ...SMSBackend) *SMSSender {
	return &SMSSender{backends: backends, fallbackOnError: fallbackOnError, logger: logger}
}

func (s *SMSSender) Channel() notification.Channel {
	return notification.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, recipient, _ string, body string) error {
	if recipient == "" {
		return fmt.Errorf("sms recipient is empty")
	}
	log := s.logger.WithField("recipient", recipient)
	if len(s.backends) == 0 {
		log.WithField("body", body).Info("No SMS backend configured, SMS logged only")
		return nil
	}

	var errs []error
	for _, b := range s.backends {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := b.SendSMS(ctx, recipient, body)
		if err == nil {
			log.WithField("backend", b.Name()).Debug("SMS delivered")
			return nil
		}
		log.WithError(err).WithField("backend", b.Name()).Warn("SMS backend failed")
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}

	joined := errors.Join(errs...)
	if s.fallbackOnError && ctx.Err() == nil {
		log.WithError(joined).Warn("All SMS backends failed, message logged only")
		return nil
	}
	return fmt.Errorf("failed to send sms to %s: %w", recipient, joined)
}
