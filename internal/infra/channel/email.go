package channel

import (
	"context"
	"fmt"

	"bus_pass_service/internal/domain/notification"
	"bus_pass_service/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Dialer is the part of *gomail.Dialer the email sender needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers alerts over SMTP. Without an SMTP host it only logs
// the message, which is how development setups run.
type EmailSender struct {
	dialer Dialer
	from   string
	logger *logrus.Entry
}

func NewEmailSender(cfg config.SMTPConfig, logger *logrus.Entry) *EmailSender {
	s := &EmailSender{from: cfg.From, logger: logger}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return s
}

// NewEmailSenderWithDialer is used when the transport is supplied by the caller.
func NewEmailSenderWithDialer(d Dialer, from string, logger *logrus.Entry) *EmailSender {
	return &EmailSender{dialer: d, from: from, logger: logger}
}

func (s *EmailSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("email recipient is empty")
	}
	if s.dialer == nil {
		s.logger.WithFields(logrus.Fields{
			"recipient": recipient,
			"subject":   subject,
		}).Info("SMTP not configured, email logged only")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email to %s abandoned: %w", recipient, ctx.Err())
	}
}
