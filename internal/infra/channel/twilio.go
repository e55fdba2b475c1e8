package channel

import (
	"context"
	"fmt"

	"bus_pass_service/internal/infra/config"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is satisfied by the Twilio v2010 API service.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioBackend sends SMS through the Twilio REST API.
type TwilioBackend struct {
	api  messageCreator
	from string
}

func NewTwilioBackend(cfg config.TwilioConfig) *TwilioBackend {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioBackend{api: client.Api, from: cfg.From}
}

func (t *TwilioBackend) Name() string { return "twilio" }

// SendSMS does not take ctx into the SDK call; the caller bounds it.
func (t *TwilioBackend) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp != nil && resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio rejected message: %s", *resp.ErrorMessage)
	}
	return nil
}
