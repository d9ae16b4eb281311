// Путь: internal/service/metrics/compute.go
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"zoho-crm-pulse/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	// TrendDays - длина ряда лидов по дням
	TrendDays = 30
	// averageDays - окно средних значений
	averageDays = 7
	// focusThreshold - порог пайплайна для подсказки о фокусе
	focusThreshold = 100000
)

// Безопасные значения, если средние посчитать не удалось
const (
	FallbackAvgLeads    = 10
	FallbackAvgDeals    = 1
	FallbackAvgPipeline = 5000000
)

var funnelColors = map[string]string{
	domain.FunnelNewLeads:      "#6366f1",
	domain.FunnelContacted:     "#0ea5e9",
	domain.FunnelQualified:     "#06b6d4",
	domain.FunnelDemoScheduled: "#14b8a6",
	domain.FunnelDemoDone:      "#10b981",
	domain.FunnelProposalSent:  "#22c55e",
	domain.FunnelNegotiation:   "#84cc16",
	domain.FunnelWon:           "#f59e0b",
}

var pipelineColors = map[string]string{
	domain.PipelineQualification: "#3b82f6",
	domain.PipelineProposal:      "#8b5cf6",
	domain.PipelineNegotiation:   "#f59e0b",
	domain.PipelineWon:           "#10b981",
	domain.PipelineLost:          "#ef4444",
}

// StartOfDay - полночь дня t в часовом поясе loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayRange - [00:00, 00:00 следующего дня) для дня t
func DayRange(t time.Time, loc *time.Location) domain.DateRange {
	start := StartOfDay(t, loc)
	return domain.DateRange{From: start, To: start.AddDate(0, 0, 1)}
}

// Round округляет до places знаков после запятой
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// PercentChange - изменение current относительно baseline в процентах, до 0.1.
// Нулевой или неопределенный (NaN, Inf) baseline дает 0.
func PercentChange(current, baseline float64) float64 {
	if baseline == 0 || math.IsNaN(baseline) || math.IsInf(baseline, 0) || math.IsNaN(current) {
		return 0
	}
	pct := (current - baseline) / baseline * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return Round(pct, 1)
}

// NormalizeSource - trim, "_" в пробел, пустое значение в Unknown
func NormalizeSource(source string) string {
	s := strings.TrimSpace(strings.ReplaceAll(source, "_", " "))
	if s == "" {
		return domain.UnknownValue
	}
	return s
}

// SourceDistribution группирует источники без учета регистра.
// Отображается первое встреченное написание.
func SourceDistribution(sources []string) []domain.SourceCount {
	index := make(map[string]int)
	var out []domain.SourceCount
	for _, raw := range sources {
		name := NormalizeSource(raw)
		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			out[i].Value++
			continue
		}
		index[key] = len(out)
		out = append(out, domain.SourceCount{Name: name, Value: 1})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	if out == nil {
		out = []domain.SourceCount{}
	}
	return out
}

// BuildFunnel строит накопительную воронку по этапам сделок
func BuildFunnel(totalLeads, convertedLeads int, stages []string) domain.FunnelSnapshot {
	buckets := make(map[string]int)
	contacted := 0
	for _, stage := range stages {
		contacted++
		if bucket, ok := FunnelRules.Classify(stage); ok {
			buckets[bucket]++
		}
	}

	// У "Demo Scheduled" нет своей корзины в CRM: вклад всегда 0
	demoScheduled := 0

	won := buckets[domain.FunnelWon]
	negotiation := buckets[domain.FunnelNegotiation] + won
	proposal := buckets[domain.FunnelProposalSent] + negotiation
	demoDone := buckets[domain.FunnelDemoDone] + proposal
	demoSched := demoScheduled + demoDone
	qualified := buckets[domain.FunnelQualified] + demoSched

	// Сделок может быть больше, чем лидов в локальной копии
	newLeads := totalLeads
	if contacted > newLeads {
		newLeads = contacted
	}

	stage := func(name string, count int) domain.FunnelStage {
		return domain.FunnelStage{Stage: name, Count: count, Color: funnelColors[name]}
	}

	return domain.FunnelSnapshot{
		FullFunnel: []domain.FunnelStage{
			stage(domain.FunnelNewLeads, newLeads),
			stage(domain.FunnelContacted, contacted),
			stage(domain.FunnelQualified, max(qualified, demoSched)),
			stage(domain.FunnelDemoScheduled, demoSched),
			stage(domain.FunnelDemoDone, demoDone),
			stage(domain.FunnelProposalSent, proposal),
			stage(domain.FunnelNegotiation, negotiation),
			stage(domain.FunnelWon, won),
		},
		LeakFunnel: []domain.FunnelStage{
			{Stage: "Total Leads", Count: totalLeads, Color: "#6366f1"},
			{Stage: "Converted Leads", Count: convertedLeads, Color: "#8b5cf6"},
			{Stage: "Active Deals", Count: contacted, Color: "#0ea5e9"},
			{Stage: domain.FunnelWon, Count: won, Color: "#f59e0b"},
		},
	}
}

// ConversionRate - доля выигранных от верха воронки, в процентах
func ConversionRate(f domain.FunnelSnapshot) float64 {
	top := f.Count(domain.FunnelNewLeads)
	if top == 0 {
		return 0
	}
	return Round(float64(f.Count(domain.FunnelWon))/float64(top)*100, 1)
}

// BuildPipeline суммирует сделки по корзинам. Сделки без корзины не учитываются.
func BuildPipeline(deals []domain.Deal) domain.PipelineSnapshot {
	sums := make(map[string]float64, len(domain.PipelineStageOrder))
	total := 0.0
	for _, d := range deals {
		bucket, ok := PipelineRules.Classify(d.Stage)
		if !ok {
			continue
		}
		amount := math.Max(d.Amount, 0)
		sums[bucket] += amount
		if bucket != domain.PipelineWon && bucket != domain.PipelineLost {
			total += amount
		}
	}

	stages := make([]domain.PipelineStage, 0, len(domain.PipelineStageOrder))
	for _, name := range domain.PipelineStageOrder {
		stages = append(stages, domain.PipelineStage{Name: name, Value: sums[name], Color: pipelineColors[name]})
	}
	return domain.PipelineSnapshot{Stages: stages, TotalValue: total}
}

// BuildDaily считает показатели дня по всем сделкам
func BuildDaily(today domain.DateRange, newLeads int, deals []domain.Deal) domain.DailyMetrics {
	daily := domain.DailyMetrics{
		Date:       today.From.Format(dateLayout),
		NewLeads:   newLeads,
		Anomalies:  []string{},
		FocusAreas: []string{},
	}

	for _, d := range deals {
		if IsClosedWon(d.Stage) && d.ClosedTime != nil && today.Contains(*d.ClosedTime) {
			daily.DealsClosed++
			daily.RevenueClosed += d.Amount
		}
		if !IsClosedWon(d.Stage) && !IsClosedLost(d.Stage) {
			daily.PipelineValue += d.Amount
		}
	}

	if daily.DealsClosed == 0 {
		daily.Anomalies = append(daily.Anomalies, "No deals closed today yet.")
	}
	if daily.PipelineValue > focusThreshold {
		daily.FocusAreas = append(daily.FocusAreas,
			"Pipeline value is healthy at ₹"+formatAmount(daily.PipelineValue)+". Focus on closing high-value active deals.")
	}
	return daily
}

// BuildTrend - плотный ряд за TrendDays дней с нулями для пустых дней
func BuildTrend(created []time.Time, now time.Time, loc *time.Location) []domain.TrendPoint {
	counts := make(map[string]int)
	for _, t := range created {
		counts[t.In(loc).Format(dateLayout)]++
	}

	today := StartOfDay(now, loc)
	trend := make([]domain.TrendPoint, 0, TrendDays)
	for i := TrendDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dateLayout)
		trend = append(trend, domain.TrendPoint{Date: day, Leads: counts[day]})
	}
	return trend
}

// BuildAverages делит сырые суммы за 7 дней на 7
func BuildAverages(leadCount int, deals []domain.Deal) domain.HistoricalAverages {
	amount := 0.0
	for _, d := range deals {
		amount += d.Amount
	}
	return domain.HistoricalAverages{
		AvgLeads:    Round(float64(leadCount)/averageDays, 1),
		AvgDeals:    Round(float64(len(deals))/averageDays, 1),
		AvgPipeline: Round(amount/averageDays, 0),
	}
}

// FallbackAverages - значения по умолчанию при ошибке чтения
func FallbackAverages() domain.HistoricalAverages {
	return domain.HistoricalAverages{
		AvgLeads:    FallbackAvgLeads,
		AvgDeals:    FallbackAvgDeals,
		AvgPipeline: FallbackAvgPipeline,
		Fallback:    true,
	}
}

// BuildSummaryRow собирает строку daily_metrics_summary
func BuildSummaryRow(today domain.DateRange, newLeads int, statuses []string, deals []domain.Deal) domain.DailyMetricsSummary {
	row := domain.DailyMetricsSummary{NewLeadsToday: newLeads}

	for _, status := range statuses {
		s := strings.ToLower(status)
		if strings.Contains(s, "contact") {
			row.LeadsContacted++
		}
		if strings.Contains(s, "qualif") {
			row.QualifiedLeads++
		}
	}

	for _, d := range deals {
		stage := normalizeStage(d.Stage)
		switch {
		case strings.Contains(stage, "demo scheduled"):
			row.DemosScheduled++
		case strings.Contains(stage, "demo held"):
			row.DemosHeld++
		}
		if strings.Contains(stage, "proposal") {
			row.ProposalsSent++
		}
		if strings.Contains(stage, "negotiation") {
			row.NegotiationsActive++
		}
		if strings.Contains(stage, "closed won") && d.ClosedTime != nil && today.Contains(*d.ClosedTime) {
			row.DealsClosed++
			row.DealAmountWon += d.Amount
		}
		if strings.Contains(stage, "closed lost") {
			row.DealAmountLost += d.Amount
		}
	}

	row.TotalRevenue = row.DealAmountWon
	return row
}

func formatAmount(v float64) string {
	return humanize.Commaf(Round(v, 2))
}
