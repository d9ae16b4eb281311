// Путь: internal/service/insight/generator.go
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/service/formatter"
)

// Виды запросов к генератору
const (
	KindAnalyst   = "analyst"
	KindViz       = "viz"
	KindMessaging = "messaging"
)

// Limits - ограничение времени и длины ответа для каждого вида запроса
type Limits struct {
	Timeout    time.Duration
	NumPredict int
}

// DefaultLimits - значения по умолчанию
var DefaultLimits = map[string]Limits{
	KindAnalyst:   {Timeout: 90 * time.Second, NumPredict: 480},
	KindViz:       {Timeout: 30 * time.Second, NumPredict: 150},
	KindMessaging: {Timeout: 30 * time.Second, NumPredict: 200},
}

const temperature = 0.1

// Generator запрашивает тексты у локальной модели Ollama
type Generator struct {
	baseURL   string
	model     string
	http      *http.Client
	limits    map[string]Limits
	formatter *formatter.Formatter
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// NewGenerator создает клиента генератора
func NewGenerator(baseURL, model string, f *formatter.Formatter) *Generator {
	limits := make(map[string]Limits, len(DefaultLimits))
	for k, v := range DefaultLimits {
		limits[k] = v
	}
	return &Generator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		http:      &http.Client{},
		limits:    limits,
		formatter: f,
	}
}

// WithLimits переопределяет ограничения для вида запроса
func (g *Generator) WithLimits(kind string, l Limits) *Generator {
	g.limits[kind] = l
	return g
}

// AnalystSummary - подробный разбор дня. При ошибке возвращает запасной текст и InsightError.
func (g *Generator) AnalystSummary(ctx context.Context, p *domain.InsightPayload) (string, error) {
	prompt, err := g.formatter.Render(analystPrompt, payloadBindings(p))
	if err != nil {
		return AnalystFallback, &domain.InsightError{Kind: KindAnalyst, Err: err}
	}
	text, err := g.generate(ctx, KindAnalyst, prompt)
	if err != nil {
		return AnalystFallback, err
	}
	return text, nil
}

// VizInsight - два предложения о воронке и источниках
func (g *Generator) VizInsight(ctx context.Context, p domain.VizPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return VizFallback, &domain.InsightError{Kind: KindViz, Err: err}
	}
	prompt, err := g.formatter.Render(vizPrompt, map[string]interface{}{"payload": string(data)})
	if err != nil {
		return VizFallback, &domain.InsightError{Kind: KindViz, Err: err}
	}
	text, err := g.generate(ctx, KindViz, prompt)
	if err != nil {
		return VizFallback, err
	}
	return text, nil
}

// MessagingSummary - короткая сводка для мессенджера
func (g *Generator) MessagingSummary(ctx context.Context, p *domain.InsightPayload) (string, error) {
	prompt, err := g.formatter.Render(messagingPrompt, payloadBindings(p))
	if err != nil {
		return g.formatter.MessagingFallback(p), &domain.InsightError{Kind: KindMessaging, Err: err}
	}
	text, err := g.generate(ctx, KindMessaging, prompt)
	if err != nil {
		return g.formatter.MessagingFallback(p), err
	}
	return text, nil
}

func payloadBindings(p *domain.InsightPayload) map[string]interface{} {
	names := make([]string, 0, len(p.LeadsBySource))
	counts := make([]int, 0, len(p.LeadsBySource))
	for _, s := range p.LeadsBySource {
		names = append(names, s.Source)
		counts = append(counts, s.Leads)
	}

	leadToDeal := 0.0
	if p.Funnel.Leads > 0 {
		leadToDeal = float64(p.Funnel.ActiveDeals) / float64(p.Funnel.Leads) * 100
	}

	anomalies, _ := json.Marshal(p.AnomalyFlags)

	return map[string]interface{}{
		"date":             p.Date,
		"new_leads":        p.NewLeadsToday,
		"new_leads_change": number(p.NewLeadsChangePercent),
		"pipeline_lakh":    formatter.Lakh(p.Pipeline.TotalValue),
		"pipeline_change":  number(p.Pipeline.ChangePercent),
		"won_today":        p.Pipeline.ClosedWonToday,
		"funnel_leads":     p.Funnel.Leads,
		"funnel_converted": p.Funnel.Converted,
		"funnel_active":    p.Funnel.ActiveDeals,
		"funnel_won":       p.Funnel.Won,
		"lead_to_deal":     strconv.FormatFloat(leadToDeal, 'f', 1, 64),
		"win_rate":         number(p.Funnel.ConversionRate),
		"sources":          formatter.SourceList(names, counts),
		"anomalies":        string(anomalies),
	}
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (g *Generator) generate(ctx context.Context, kind, prompt string) (string, error) {
	limits := g.limits[kind]

	callCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			NumPredict:  limits.NumPredict,
		},
	})
	if err != nil {
		return "", &domain.InsightError{Kind: kind, Err: err}
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &domain.InsightError{Kind: kind, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", g.fail(kind, timeout, err, started)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		timeout := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", g.fail(kind, timeout, err, started)
	}

	if resp.StatusCode != http.StatusOK {
		return "", g.fail(kind, false, fmt.Errorf("ollama API returned status: %d", resp.StatusCode), started)
	}

	var result generateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", g.fail(kind, false, fmt.Errorf("failed to decode response: %w", err), started)
	}
	if result.Error != "" {
		return "", g.fail(kind, false, errors.New(result.Error), started)
	}

	text := strings.TrimSpace(result.Response)
	if text == "" {
		return "", g.fail(kind, false, errors.New("empty response"), started)
	}

	log.Info().
		Str("component", "insight").
		Str("kind", kind).
		Dur("duration", time.Since(started)).
		Int("length", len(text)).
		Msg("Insight generated")

	return text, nil
}

func (g *Generator) fail(kind string, timeout bool, err error, started time.Time) error {
	insightErr := &domain.InsightError{Kind: kind, Timeout: timeout, Err: err}
	log.Warn().
		Err(err).
		Str("component", "insight").
		Str("kind", kind).
		Bool("timeout", timeout).
		Dur("duration", time.Since(started)).
		Msg("Inference failed, using fallback")
	return insightErr
}
