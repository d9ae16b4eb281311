// Путь: internal/twilio/client.go
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL - REST API Twilio
const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

// Client отправляет WhatsApp сообщения через Twilio Messages API
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	http       *http.Client
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewClient(accountSID, authToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendMessage отправляет текст и возвращает SID сообщения
func (c *Client) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result messageResponse
	_ = json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if result.Message != "" {
			return "", fmt.Errorf("API error: %s: %d %s", resp.Status, result.Code, result.Message)
		}
		return "", fmt.Errorf("API error: %s", resp.Status)
	}

	return result.SID, nil
}
