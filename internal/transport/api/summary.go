package api

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/service/formatter"
	"zoho-crm-pulse/internal/service/pipeline"
	"zoho-crm-pulse/internal/snapshot"
)

type dailySummaryResponse struct {
	Text        string             `json:"text"`
	LastRunTime time.Time          `json:"lastRunTime"`
	Overview    domain.Overview    `json:"overview"`
	VizInsights domain.InsightText `json:"vizInsights"`
	Source      string             `json:"source"`
}

// latestSummary читает последнюю сводку из БД, затем из локального кэша
func (h *Handler) latestSummary(ctx context.Context) (*domain.SummaryPayload, time.Time, string, error) {
	row, err := h.repo.LatestAISummary(ctx)
	if err == nil {
		payload, decodeErr := row.Decode()
		if decodeErr != nil {
			return nil, time.Time{}, "", decodeErr
		}
		return payload, row.CreatedAt, "live", nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Str("component", "api").Msg("Failed to read latest summary, trying cache")
	}

	var cached domain.SummaryPayload
	savedAt, cacheErr := h.snapshots.Get(snapshot.KeyLatestSummary, &cached)
	if cacheErr != nil {
		return nil, time.Time{}, "", domain.ErrNotFound
	}
	return &cached, savedAt, "cache", nil
}

var errMalformed = errors.New("latest summary is malformed")

// DailySummary - последняя сохраненная сводка
func (h *Handler) DailySummary(c echo.Context) error {
	payload, at, source, err := h.latestSummary(c.Request().Context())
	if errors.Is(err, domain.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "No summaries found yet.")
	}
	if err != nil {
		log.Error().Err(err).Str("component", "api").Msg("Malformed summary payload")
		return errorJSON(c, http.StatusInternalServerError, errMalformed.Error())
	}

	return c.JSON(http.StatusOK, dailySummaryResponse{
		Text:        payload.AISummary.Text,
		LastRunTime: at,
		Overview:    payload.Overview,
		VizInsights: payload.VizInsights,
		Source:      source,
	})
}

// Trigger синхронно запускает пайплайн без доставки и возвращает ошибку вызывающему
func (h *Handler) Trigger(c echo.Context) error {
	log.Info().Str("component", "api").Msg("Manual pipeline triggered")

	// Запуск не прерывается, если клиент отключился
	result := h.runner.Run(context.WithoutCancel(c.Request().Context()), pipeline.RunOptions{Deliver: false})

	if result.Status == pipeline.StatusFailed {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":  strings.Join(result.Errors, "; "),
			"runId":  result.RunID,
			"status": result.Status,
		})
	}

	message := "Pipeline completed successfully. Data is now up to date."
	if result.Status == pipeline.StatusPartial {
		message = "Pipeline completed with errors. Some data may be stale."
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     message,
		"runId":       result.RunID,
		"status":      result.Status,
		"leadsSynced": result.LeadsSynced,
		"dealsSynced": result.DealsSynced,
		"errors":      result.Errors,
	})
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// WhatsAppWebhook - входящие сообщения Twilio. UPDATE отвечает последней сводкой и запускает пайплайн.
func (h *Handler) WhatsAppWebhook(c echo.Context) error {
	body := c.FormValue("Body")
	from := c.FormValue("From")
	if from == "" {
		from = domain.UnknownValue
	}

	log.Info().Str("component", "webhook").Str("from", from).Str("body", body).Msg("Incoming message")

	if !formatter.IsUpdateCommand(body) {
		return twiml(c, formatter.UsageText)
	}

	reply := formatter.SyncingText + formatter.NoSummaryText
	payload, at, _, err := h.latestSummary(c.Request().Context())
	if err == nil && payload.WhatsappSummary.Text != "" {
		reply = formatter.LatestPulse(at.In(h.loc).Format("15:04:05"), payload.WhatsappSummary.Text)
	}

	h.runAsync()

	return twiml(c, reply)
}

// twiml отвечает Twilio сообщением в формате TwiML
func twiml(c echo.Context, message string) error {
	body, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/xml", append([]byte(xml.Header), body...))
}

func (h *Handler) runAsync() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		result := h.runner.Run(h.baseCtx, pipeline.RunOptions{Deliver: true})
		log.Info().
			Str("component", "webhook").
			Str("run_id", result.RunID).
			Str("status", string(result.Status)).
			Msg("Background run completed")
	}()
}
