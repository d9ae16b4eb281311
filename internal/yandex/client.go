// Путь: internal/yandex/client.go
package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL - Bot API Яндекс Мессенджера
const DefaultBaseURL = "https://botapi.messenger.yandex.net/bot/v1"

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

type sendTextRequest struct {
	ChatID string `json:"chat_id,omitempty"`
	Login  string `json:"login,omitempty"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	MessageID int64 `json:"message_id"`
	Ok        bool  `json:"ok"`

	Description string `json:"description,omitempty"`
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL подменяет адрес API (тесты)
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// SendToChat отправляет текст в групповой чат
func (c *Client) SendToChat(ctx context.Context, chatID, text string) (int64, error) {
	return c.sendText(ctx, sendTextRequest{ChatID: chatID, Text: text})
}

// SendToLogin отправляет текст пользователю по логину
func (c *Client) SendToLogin(ctx context.Context, login, text string) (int64, error) {
	return c.sendText(ctx, sendTextRequest{Login: login, Text: text})
}

func (c *Client) sendText(ctx context.Context, req sendTextRequest) (int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/sendText/", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return 0, fmt.Errorf("API error: %s: %s", resp.Status, string(raw))
	}

	var result sendTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Ok {
		return 0, fmt.Errorf("API returned not ok: %s", result.Description)
	}

	return result.MessageID, nil
}
