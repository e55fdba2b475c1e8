package channel

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"bus_pass_service/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeDialer struct {
	sent  []*gomail.Message
	err   error
	block chan struct{}
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.sent = append(d.sent, m...)
	return d.err
}

func TestEmailSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := NewEmailSenderWithDialer(d, "noreply@buspass.local", testLogger())

	err := s.Send(context.Background(), "asha@example.com", "Bus Pass Expiry Alert", "hello")
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"asha@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Bus Pass Expiry Alert"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, notification.ChannelEmail, s.Channel())
}

func TestEmailSender_DialError(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	s := NewEmailSenderWithDialer(d, "noreply@buspass.local", testLogger())

	err := s.Send(context.Background(), "asha@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmailSender_HonoursContext(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	defer close(d.block)
	s := NewEmailSenderWithDialer(d, "noreply@buspass.local", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, "asha@example.com", "s", "b")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmailSender_NoHostLogsOnly(t *testing.T) {
	s := NewEmailSenderWithDialer(nil, "", testLogger())
	assert.NoError(t, s.Send(context.Background(), "asha@example.com", "s", "b"))
	assert.Error(t, s.Send(context.Background(), "", "s", "b"))
}

type fakeBackend struct {
	name  string
	err   error
	calls int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) SendSMS(_ context.Context, _, _ string) error {
	b.calls++
	return b.err
}

func TestSMSSender_Send(t *testing.T) {
	tests := []struct {
		name      string
		backends  []*fakeBackend
		fallback  bool
		wantErr   bool
		wantCalls []int
	}{
		{
			name:    "no backends logs only",
			wantErr: false,
		},
		{
			name:      "first backend succeeds",
			backends:  []*fakeBackend{{name: "a"}, {name: "b"}},
			wantCalls: []int{1, 0},
		},
		{
			name:      "falls through to second backend",
			backends:  []*fakeBackend{{name: "a", err: errors.New("down")}, {name: "b"}},
			wantCalls: []int{1, 1},
		},
		{
			name:      "all fail without fallback",
			backends:  []*fakeBackend{{name: "a", err: errors.New("down")}},
			wantErr:   true,
			wantCalls: []int{1},
		},
		{
			name:      "all fail with fallback",
			backends:  []*fakeBackend{{name: "a", err: errors.New("down")}},
			fallback:  true,
			wantCalls: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []SMSBackend
			for _, b := range tt.backends {
				backends = append(backends, b)
			}
			s := NewSMSSender(testLogger(), tt.fallback, backends...)

			err := s.Send(context.Background(), "+919800000000", "", "Your pass expires soon")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			for i, want := range tt.wantCalls {
				assert.Equal(t, want, tt.backends[i].calls, "backend %s", tt.backends[i].name)
			}
		})
	}
}

type fakeMessageAPI struct {
	params *twilioApi.CreateMessageParams
	resp   *twilioApi.ApiV2010Message
	err    error
}

func (f *fakeMessageAPI) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	return f.resp, f.err
}

func TestTwilioBackend_SendSMS(t *testing.T) {
	api := &fakeMessageAPI{resp: &twilioApi.ApiV2010Message{}}
	b := &TwilioBackend{api: api, from: "+15550001111"}

	require.NoError(t, b.SendSMS(context.Background(), "+919800000000", "hi"))
	require.NotNil(t, api.params)
	assert.Equal(t, "+919800000000", *api.params.To)
	assert.Equal(t, "+15550001111", *api.params.From)
	assert.Equal(t, "hi", *api.params.Body)

	msg := "invalid number"
	api.resp = &twilioApi.ApiV2010Message{ErrorMessage: &msg}
	assert.ErrorContains(t, b.SendSMS(context.Background(), "x", "hi"), "invalid number")

	api.err = errors.New("401")
	assert.Error(t, b.SendSMS(context.Background(), "x", "hi"))
}

type countingSender struct{ calls int }

func (c *countingSender) Channel() notification.Channel { return notification.ChannelSMS }

func (c *countingSender) Send(context.Context, string, string, string) error {
	c.calls++
	return nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingSender{}
	assert.Same(t, notification.Sender(inner), RateLimited(inner, nil))

	limited := RateLimited(inner, rate.NewLimiter(rate.Every(time.Hour), 1))
	assert.Equal(t, notification.ChannelSMS, limited.Channel())
	require.NoError(t, limited.Send(context.Background(), "r", "", "b"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limited.Send(ctx, "r", "", "b"))
	assert.Equal(t, 1, inner.calls)
}
