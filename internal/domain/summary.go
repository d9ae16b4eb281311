package domain

import (
	"encoding/json"
	"time"
)

// OverviewMetric - карточка обзора на дашборде
type OverviewMetric struct {
	Value     interface{} `json:"value"`
	ChangePct float64     `json:"changePct"`
	TrendStr  string      `json:"trendStr"`
	IsGood    bool        `json:"isGood"`
}

// Overview - четыре карточки обзора
type Overview struct {
	NewLeads       OverviewMetric `json:"newLeads"`
	ConversionRate OverviewMetric `json:"conversionRate"`
	DealsClosed    OverviewMetric `json:"dealsClosed"`
	PipelineValue  OverviewMetric `json:"pipelineValue"`
}

// InsightText - текст, полученный от генератора (или запасной)
type InsightText struct {
	LastRunTime string `json:"lastRunTime,omitempty"`
	Text        string `json:"text"`
}

// SummaryPayload - содержимое строки ai_summaries
type SummaryPayload struct {
	Date            string      `json:"date"`
	Overview        Overview    `json:"overview"`
	AISummary       InsightText `json:"aiSummary"`
	WhatsappSummary InsightText `json:"whatsappSummary"`
	VizInsights     InsightText `json:"vizInsights"`
}

// AISummary - сохраненная сводка (append-only)
type AISummary struct {
	ID        int64           `db:"id" json:"id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Decode разбирает payload сводки
func (s *AISummary) Decode() (*SummaryPayload, error) {
	var p SummaryPayload
	if err := json.Unmarshal(s.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SourceLeads - строка распределения по источникам в запросе к модели
type SourceLeads struct {
	Source        string  `json:"source"`
	Leads         int     `json:"leads"`
	ChangePercent float64 `json:"change_percent"`
}

// FunnelSummary - воронка в запросе к модели
type FunnelSummary struct {
	Leads          int     `json:"leads"`
	Converted      int     `json:"converted"`
	ActiveDeals    int     `json:"active_deals"`
	Contacted      int     `json:"contacted"`
	Qualified      int     `json:"qualified"`
	ProposalSent   int     `json:"proposal_sent"`
	Won            int     `json:"won"`
	ConversionRate float64 `json:"conversion_rate"`
}

// PipelineSummary - пайплайн в запросе к модели
type PipelineSummary struct {
	TotalValue      float64 `json:"total_value"`
	ChangePercent   float64 `json:"change_percent"`
	ClosedWonToday  int     `json:"closed_won_today"`
	ClosedLostToday int     `json:"closed_lost_today"`
}

// InsightPayload - структурированные метрики для генератора текста
type InsightPayload struct {
	Date                  string          `json:"date"`
	NewLeadsToday         int             `json:"new_leads_today"`
	NewLeads7DayAvg       float64         `json:"new_leads_7day_avg"`
	NewLeadsChangePercent float64         `json:"new_leads_change_percent"`
	LeadsTrend30Days      []TrendPoint    `json:"leads_trend_30days"`
	LeadsBySource         []SourceLeads   `json:"leads_by_source"`
	Funnel                FunnelSummary   `json:"funnel"`
	Pipeline              PipelineSummary `json:"pipeline"`
	AnomalyFlags          []string        `json:"anomaly_flags"`
}

// VizPayload - данные для короткого комментария к графикам
type VizPayload struct {
	Funnel  []FunnelStage `json:"funnel"`
	Sources []SourceCount `json:"sources"`
}
