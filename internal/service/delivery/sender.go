// Путь: internal/service/delivery/sender.go
package delivery

import (
	"context"

	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/config"
	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/twilio"
	"zoho-crm-pulse/internal/yandex"
)

// Каналы доставки
const (
	ChannelTwilio = "twilio"
	ChannelYandex = "yandex"
	ChannelLog    = "log"
)

// Sender - односторонняя отправка текста
type Sender interface {
	Channel() string
	Send(ctx context.Context, text string) error
}

// Deliver отправляет текст и только логирует ошибку
func Deliver(ctx context.Context, s Sender, text string) error {
	if err := s.Send(ctx, text); err != nil {
		deliveryErr := &domain.DeliveryError{Channel: s.Channel(), Err: err}
		log.Error().Err(err).Str("component", "delivery").Str("channel", s.Channel()).Msg("Failed to deliver message")
		return deliveryErr
	}
	log.Info().Str("component", "delivery").Str("channel", s.Channel()).Int("length", len(text)).Msg("Message delivered")
	return nil
}

// TwilioSender - WhatsApp через Twilio
type TwilioSender struct {
	client *twilio.Client
	from   string
	to     string
}

func NewTwilioSender(client *twilio.Client, from, to string) *TwilioSender {
	return &TwilioSender{client: client, from: from, to: to}
}

func (s *TwilioSender) Channel() string { return ChannelTwilio }

func (s *TwilioSender) Send(ctx context.Context, text string) error {
	sid, err := s.client.SendMessage(ctx, s.from, s.to, text)
	if err != nil {
		return err
	}
	log.Debug().Str("component", "delivery").Str("sid", sid).Msg("Twilio message queued")
	return nil
}

// YandexSender - сообщение в чат Яндекс Мессенджера
type YandexSender struct {
	client *yandex.Client
	chatID string
}

func NewYandexSender(client *yandex.Client, chatID string) *YandexSender {
	return &YandexSender{client: client, chatID: chatID}
}

func (s *YandexSender) Channel() string { return ChannelYandex }

func (s *YandexSender) Send(ctx context.Context, text string) error {
	_, err := s.client.SendToChat(ctx, s.chatID, text)
	return err
}

// LogSender - доставка не настроена, текст только пишется в лог
type LogSender struct{}

func (LogSender) Channel() string { return ChannelLog }

func (LogSender) Send(_ context.Context, text string) error {
	log.Info().Str("component", "delivery").Str("text", text).Msg("Delivery is not configured, message logged only")
	return nil
}

// NewSender выбирает канал по конфигурации. Без учетных данных - LogSender.
func NewSender(cfg *config.Config) Sender {
	switch cfg.DeliveryChannel {
	case ChannelYandex:
		if cfg.Yandex.BotToken != "" && cfg.Yandex.ChatID != "" {
			return NewYandexSender(yandex.NewClient(cfg.Yandex.BotToken), cfg.Yandex.ChatID)
		}
	case ChannelTwilio:
		tw := cfg.Twilio
		if tw.AccountSID != "" && tw.AuthToken != "" && tw.ToNumber != "" {
			return NewTwilioSender(twilio.NewClient(tw.AccountSID, tw.AuthToken, tw.BaseURL), tw.FromNumber, tw.ToNumber)
		}
	}

	log.Warn().Str("component", "delivery").Str("channel", cfg.DeliveryChannel).Msg("Delivery credentials missing, using log-only sender")
	return LogSender{}
}
