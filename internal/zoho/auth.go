// Путь: internal/zoho/auth.go
package zoho

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"zoho-crm-pulse/internal/domain"
)

// refreshMargin - токен обновляется, если до истечения осталось меньше
const refreshMargin = 5 * time.Minute

// Credentials - долгоживущие данные для обмена refresh token на access token
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Session - текущий access token и момент его истечения
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid сообщает, можно ли использовать токен в момент now
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt.Add(-refreshMargin))
}

// Refresh обменивает refresh token на новую сессию. Повторов нет: решает вызывающий.
func Refresh(ctx context.Context, httpClient *http.Client, creds Credentials) (Session, error) {
	if !creds.complete() {
		return Session{}, &domain.AuthError{Reason: "zoho credentials are not configured"}
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  creds.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return Session{}, &domain.AuthError{Reason: retrieveErr.ErrorCode, Err: err}
		}
		return Session{}, &domain.AuthError{Reason: "token refresh failed", Err: err}
	}

	return Session{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}, nil
}

// Broker кэширует сессию и обновляет её прозрачно для клиента CRM
type Broker struct {
	creds Credentials
	http  *http.Client
	now   func() time.Time

	mu      sync.Mutex
	session Session
}

// NewBroker создает брокер токенов
func NewBroker(creds Credentials, httpClient *http.Client) *Broker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Broker{
		creds: creds,
		http:  httpClient,
		now:   time.Now,
	}
}

// Token возвращает действующий access token
func (b *Broker) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session.Valid(b.now()) {
		return b.session.AccessToken, nil
	}

	session, err := Refresh(ctx, b.http, b.creds)
	if err != nil {
		log.Error().Err(err).Str("component", "zoho_auth").Msg("Failed to refresh token")
		return "", err
	}

	b.session = session
	log.Info().
		Str("component", "zoho_auth").
		Time("expires_at", session.ExpiresAt).
		Msg("Successfully refreshed token")

	return session.AccessToken, nil
}

// Session возвращает копию текущей сессии
func (b *Broker) Session() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}
