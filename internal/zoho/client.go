// Путь: internal/zoho/client.go
package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/internal/domain"
)

const (
	// PageSize - записей на страницу поиска
	PageSize = 200
	// maxPages - защита от бесконечной пагинации
	maxPages = 1000
	// maxErrorBody - сколько байт тела ошибки сохраняем для диагностики
	maxErrorBody = 500
)

// TokenProvider выдает действующий access token
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL string
	tokens  TokenProvider
	http    *http.Client
}

type searchResponse struct {
	Data []json.RawMessage `json:"data"`
	Info struct {
		MoreRecords bool `json:"more_records"`
		Page        int  `json:"page"`
		PerPage     int  `json:"per_page"`
		Count       int  `json:"count"`
	} `json:"info"`
}

func NewClient(baseURL string, tokens TokenProvider) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient подменяет HTTP клиент (тесты, прокси)
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// FetchModifiedSince забирает все записи модуля, измененные начиная с watermark.
// Ошибка любой страницы отменяет всю выборку: частичный результат не возвращается.
func (c *Client) FetchModifiedSince(ctx context.Context, module string, watermark time.Time) ([]json.RawMessage, error) {
	criteria := fmt.Sprintf("(Modified_Time:greater_equal:%s)", FormatWatermark(watermark))

	log.Info().
		Str("component", "zoho").
		Str("module", module).
		Str("since", FormatWatermark(watermark)).
		Msg("Fetching modified records")

	var all []json.RawMessage
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, &domain.UpstreamError{
				Module: module,
				Page:   page,
				Err:    fmt.Errorf("pagination did not terminate after %d pages", maxPages),
			}
		}

		resp, err := c.searchPage(ctx, module, criteria, page)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Data...)

		if len(resp.Data) < PageSize || !resp.Info.MoreRecords {
			break
		}
	}

	log.Info().
		Str("component", "zoho").
		Str("module", module).
		Int("count", len(all)).
		Msg("Fetched modified records")

	return all, nil
}

func (c *Client) searchPage(ctx context.Context, module, criteria string, page int) (*searchResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("criteria", criteria)
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(PageSize))
	endpoint := fmt.Sprintf("%s/%s/search?%s", c.baseURL, url.PathEscape(module), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Module: module, Page: page, Err: err}
	}
	defer resp.Body.Close()

	// 204 - записей нет, это последняя страница
	if resp.StatusCode == http.StatusNoContent {
		return &searchResponse{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Module: module, Page: page, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{
			Module:     module,
			Page:       page,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
			Err:        fmt.Errorf("API error: %s", resp.Status),
		}
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &domain.UpstreamError{
			Module:     module,
			Page:       page,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}

	return &result, nil
}

// truncate обрезает строку по границе символа UTF-8
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
