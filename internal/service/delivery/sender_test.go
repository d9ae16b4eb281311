package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-crm-pulse/config"
	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/twilio"
	"zoho-crm-pulse/internal/yandex"
)

type failingSender struct{}

func (failingSender) Channel() string                    { return "broken" }
func (failingSender) Send(context.Context, string) error { return errors.New("boom") }

func TestNewSenderSelection(t *testing.T) {
	cfg := &config.Config{DeliveryChannel: ChannelTwilio}
	assert.IsType(t, LogSender{}, NewSender(cfg))

	cfg.Twilio = config.TwilioConfig{AccountSID: "AC1", AuthToken: "t", ToNumber: "whatsapp:+1"}
	assert.IsType(t, &TwilioSender{}, NewSender(cfg))

	cfg = &config.Config{DeliveryChannel: ChannelYandex, Yandex: config.YandexConfig{BotToken: "b"}}
	assert.IsType(t, LogSender{}, NewSender(cfg))

	cfg.Yandex.ChatID = "chat"
	assert.IsType(t, &YandexSender{}, NewSender(cfg))

	assert.IsType(t, LogSender{}, NewSender(&config.Config{DeliveryChannel: "pigeon"}))
}

func TestDeliverWrapsError(t *testing.T) {
	err := Deliver(context.Background(), failingSender{}, "text")

	var deliveryErr *domain.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "broken", deliveryErr.Channel)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, Deliver(context.Background(), LogSender{}, "text"))
}

func TestTwilioSender(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		body = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	s := NewTwilioSender(twilio.NewClient("AC1", "t", srv.URL), "whatsapp:+1", "whatsapp:+2")
	require.NoError(t, Deliver(context.Background(), s, "daily summary"))
	assert.Equal(t, "daily summary", body)
}

func TestYandexSenderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewYandexSender(yandex.NewClient("b").WithBaseURL(srv.URL), "chat")
	err := Deliver(context.Background(), s, "x")

	var deliveryErr *domain.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, ChannelYandex, deliveryErr.Channel)
}
