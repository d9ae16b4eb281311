package domain

import "time"

// Названия этапов канонической воронки
const (
	FunnelNewLeads      = "New Leads"
	FunnelContacted     = "Contacted"
	FunnelQualified     = "Qualified"
	FunnelDemoScheduled = "Demo Scheduled"
	FunnelDemoDone      = "Demo Done"
	FunnelProposalSent  = "Proposal Sent"
	FunnelNegotiation   = "Negotiation"
	FunnelWon           = "Won"
)

// Корзины пайплайна
const (
	PipelineQualification = "Qualification"
	PipelineProposal      = "Proposal"
	PipelineNegotiation   = "Negotiation"
	PipelineWon           = "Won"
	PipelineLost          = "Lost"
)

// PipelineStageOrder - порядок корзин пайплайна в ответах API
var PipelineStageOrder = []string{
	PipelineQualification,
	PipelineProposal,
	PipelineNegotiation,
	PipelineWon,
	PipelineLost,
}

// FunnelStage - этап воронки с накопительным счетчиком
type FunnelStage struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
	Color string `json:"color,omitempty"`
}

// FunnelSnapshot - накопительная воронка и упрощенная "воронка утечек"
type FunnelSnapshot struct {
	FullFunnel []FunnelStage `json:"fullFunnel"`
	LeakFunnel []FunnelStage `json:"leakFunnel"`
}

// Count возвращает значение этапа по имени
func (f FunnelSnapshot) Count(stage string) int {
	for _, s := range f.FullFunnel {
		if s.Stage == stage {
			return s.Count
		}
	}
	return 0
}

// PipelineStage - сумма сделок в корзине
type PipelineStage struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// PipelineSnapshot - суммы по корзинам и активный пайплайн (без Won/Lost)
type PipelineSnapshot struct {
	Stages     []PipelineStage `json:"stages"`
	TotalValue float64         `json:"totalValue"`
}

// Value возвращает сумму корзины по имени
func (p PipelineSnapshot) Value(name string) float64 {
	for _, s := range p.Stages {
		if s.Name == name {
			return s.Value
		}
	}
	return 0
}

// SourceCount - количество лидов по нормализованному источнику
type SourceCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DailyMetrics - показатели текущего дня
type DailyMetrics struct {
	Date          string   `json:"date"`
	NewLeads      int      `json:"new_leads"`
	DealsClosed   int      `json:"deals_closed"`
	RevenueClosed float64  `json:"revenue_closed"`
	PipelineValue float64  `json:"pipeline_value"`
	Anomalies     []string `json:"anomalies"`
	FocusAreas    []string `json:"focus_areas"`
}

// HistoricalAverages - средние за 7 дней
type HistoricalAverages struct {
	AvgLeads    float64 `json:"avgLeads"`
	AvgDeals    float64 `json:"avgDeals"`
	AvgPipeline float64 `json:"avgPipeline"`
	Fallback    bool    `json:"fallback,omitempty"`
}

// TrendPoint - число лидов за день
type TrendPoint struct {
	Date  string `json:"date"`
	Leads int    `json:"leads"`
}

// DailyMetricsSummary - единственная строка таблицы daily_metrics_summary
type DailyMetricsSummary struct {
	NewLeadsToday      int     `db:"new_leads_today" json:"new_leads_today"`
	LeadsContacted     int     `db:"leads_contacted" json:"leads_contacted"`
	QualifiedLeads     int     `db:"qualified_leads" json:"qualified_leads"`
	DemosScheduled     int     `db:"demos_scheduled" json:"demos_scheduled"`
	DemosHeld          int     `db:"demos_held" json:"demos_held"`
	ProposalsSent      int     `db:"proposals_sent" json:"proposals_sent"`
	NegotiationsActive int     `db:"negotiations_active" json:"negotiations_active"`
	DealsClosed        int     `db:"deals_closed" json:"deals_closed"`
	DealAmountWon      float64 `db:"deal_amount_won" json:"deal_amount_won"`
	DealAmountLost     float64 `db:"deal_amount_lost" json:"deal_amount_lost"`
	TotalRevenue       float64 `db:"total_revenue" json:"total_revenue"`
}

// MetricsBundle - все производные показатели одного запуска
type MetricsBundle struct {
	Daily      DailyMetrics
	Sources    []SourceCount
	Funnel     FunnelSnapshot
	Pipeline   PipelineSnapshot
	Trend      []TrendPoint
	Averages   HistoricalAverages
	Summary    DailyMetricsSummary
	ComputedAt time.Time
}
