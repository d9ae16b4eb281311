// Путь: internal/service/formatter/summary.go
package formatter

import (
	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/service/metrics"
)

// conversionBenchmark - целевая конверсия в процентах
const conversionBenchmark = 15.0

// InsightPayload собирает структурированные метрики для генератора текста
func InsightPayload(b *domain.MetricsBundle) *domain.InsightPayload {
	sources := make([]domain.SourceLeads, 0, len(b.Sources))
	for _, s := range b.Sources {
		sources = append(sources, domain.SourceLeads{Source: s.Name, Leads: s.Value})
	}

	anomalies := b.Daily.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}

	return &domain.InsightPayload{
		Date:                  b.Daily.Date,
		NewLeadsToday:         b.Daily.NewLeads,
		NewLeads7DayAvg:       b.Averages.AvgLeads,
		NewLeadsChangePercent: metrics.PercentChange(float64(b.Daily.NewLeads), b.Averages.AvgLeads),
		LeadsTrend30Days:      b.Trend,
		LeadsBySource:         sources,
		Funnel: domain.FunnelSummary{
			Leads:          b.Funnel.Count(domain.FunnelNewLeads),
			Converted:      leakCount(b.Funnel, "Converted Leads"),
			ActiveDeals:    leakCount(b.Funnel, "Active Deals"),
			Contacted:      b.Funnel.Count(domain.FunnelContacted),
			Qualified:      b.Funnel.Count(domain.FunnelQualified),
			ProposalSent:   b.Funnel.Count(domain.FunnelProposalSent),
			Won:            b.Funnel.Count(domain.FunnelWon),
			ConversionRate: metrics.ConversionRate(b.Funnel),
		},
		Pipeline: domain.PipelineSummary{
			TotalValue:     b.Daily.PipelineValue,
			ChangePercent:  metrics.PercentChange(b.Daily.PipelineValue, b.Averages.AvgPipeline),
			ClosedWonToday: b.Daily.DealsClosed,
		},
		AnomalyFlags: anomalies,
	}
}

func leakCount(f domain.FunnelSnapshot, stage string) int {
	for _, s := range f.LeakFunnel {
		if s.Stage == stage {
			return s.Count
		}
	}
	return 0
}

// Overview - карточки дашборда относительно средних за 7 дней
func Overview(b *domain.MetricsBundle) domain.Overview {
	rate := metrics.ConversionRate(b.Funnel)

	vsAvg := func(value interface{}, current, avg float64) domain.OverviewMetric {
		change := metrics.PercentChange(current, avg)
		return domain.OverviewMetric{
			Value:     value,
			ChangePct: change,
			TrendStr:  "vs 7-day avg",
			IsGood:    change >= 0,
		}
	}

	return domain.Overview{
		NewLeads: vsAvg(b.Daily.NewLeads, float64(b.Daily.NewLeads), b.Averages.AvgLeads),
		ConversionRate: domain.OverviewMetric{
			Value:     Percent(rate),
			ChangePct: metrics.PercentChange(rate, conversionBenchmark),
			TrendStr:  "vs benchmark",
			IsGood:    rate >= conversionBenchmark,
		},
		DealsClosed:   vsAvg(b.Daily.DealsClosed, float64(b.Daily.DealsClosed), b.Averages.AvgDeals),
		PipelineValue: vsAvg("₹"+Lakh(b.Daily.PipelineValue)+"L", b.Daily.PipelineValue, b.Averages.AvgPipeline),
	}
}
