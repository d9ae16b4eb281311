// Путь: internal/service/metrics/rules.go
package metrics

import (
	"strings"

	"zoho-crm-pulse/internal/domain"
)

type matchKind int

const (
	matchExact matchKind = iota
	matchContains
)

// StageRule - правило отнесения текстового этапа сделки к корзине
type StageRule struct {
	kind   matchKind
	phrase string
	Bucket string
}

func exact(phrase, bucket string) StageRule {
	return StageRule{kind: matchExact, phrase: phrase, Bucket: bucket}
}

func contains(phrase, bucket string) StageRule {
	return StageRule{kind: matchContains, phrase: phrase, Bucket: bucket}
}

// Matches сравнивает с уже нормализованным (trim + lower) этапом
func (r StageRule) Matches(stage string) bool {
	if r.kind == matchExact {
		return stage == r.phrase
	}
	return strings.Contains(stage, r.phrase)
}

// RuleSet - упорядоченный список правил, побеждает первое совпадение
type RuleSet []StageRule

// Classify возвращает корзину этапа или false, если ни одно правило не подошло
func (rs RuleSet) Classify(stage string) (string, bool) {
	normalized := normalizeStage(stage)
	for _, rule := range rs {
		if rule.Matches(normalized) {
			return rule.Bucket, true
		}
	}
	return "", false
}

func normalizeStage(stage string) string {
	return strings.ToLower(strings.TrimSpace(stage))
}

// FunnelRules - корзины воронки. Точные фразы идут раньше нечетких.
var FunnelRules = RuleSet{
	exact("awaiting electric plan", domain.FunnelQualified),
	exact("walkthrough completed", domain.FunnelDemoDone),
	exact("proposal shared", domain.FunnelProposalSent),
	exact("negotiation/review", domain.FunnelNegotiation),
	exact("closed and advance pending", domain.FunnelNegotiation),
	exact("closed won", domain.FunnelWon),
	contains("demo", domain.FunnelDemoDone),
	contains("proposal", domain.FunnelProposalSent),
	contains("negotiat", domain.FunnelNegotiation),
}

// PipelineRules - корзины пайплайна
var PipelineRules = RuleSet{
	exact("awaiting electric plan", domain.PipelineQualification),
	exact("proposal shared", domain.PipelineProposal),
	exact("negotiation/review", domain.PipelineNegotiation),
	exact("closed and advance pending", domain.PipelineNegotiation),
	exact("closed won", domain.PipelineWon),
	exact("closed lost", domain.PipelineLost),
	contains("qualif", domain.PipelineQualification),
	contains("proposal", domain.PipelineProposal),
	contains("quote", domain.PipelineProposal),
	contains("negotiat", domain.PipelineNegotiation),
}

// IsClosedWon - сделка выиграна ("Closed Won" или просто "Closed")
func IsClosedWon(stage string) bool {
	s := normalizeStage(stage)
	return s == "closed" || strings.Contains(s, "closed won")
}

// IsClosedLost - сделка проиграна
func IsClosedLost(stage string) bool {
	return strings.Contains(normalizeStage(stage), "closed lost")
}
