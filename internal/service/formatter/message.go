// Путь: internal/service/formatter/message.go
package formatter

import (
	"strings"

	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/internal/domain"
)

const messagingFallbackTemplate = `📊 Daily CRM Summary
• New Leads: {{ new_leads }}
• Deals Won: {{ deals_won }}
• Pipeline: ₹{{ pipeline_lakh }}L

Check dashboard for full strategic briefing! 💡`

// UsageText - ответ на неизвестную команду во входящем сообщении
const UsageText = `Command not recognized. Type "UPDATE" to receive your Revenue Intelligence Brief. 💡`

// SyncingText открывает ответ на UPDATE
const SyncingText = "🔄 Syncing Zoho for fresh insights... \n\n"

// NoSummaryText - ответ, когда сводок еще нет
const NoSummaryText = "No previous summary found. I'm generating your first one now! 🚀"

// LatestPulse - ответ на UPDATE с последней сохраненной сводкой
func LatestPulse(at, text string) string {
	return SyncingText + "*Latest Pulse (" + at + "):*\n" + text
}

// MessagingFallback - короткая сводка без генератора, только из чисел
func (f *Formatter) MessagingFallback(p *domain.InsightPayload) string {
	text, err := f.Render(messagingFallbackTemplate, map[string]interface{}{
		"new_leads":     p.NewLeadsToday,
		"deals_won":     p.Pipeline.ClosedWonToday,
		"pipeline_lakh": Lakh(p.Pipeline.TotalValue),
	})
	if err != nil {
		log.Error().Err(err).Str("component", "formatter").Msg("Failed to render messaging fallback")
		return "📊 Daily CRM Summary\n• Pipeline: ₹" + Lakh(p.Pipeline.TotalValue) + "L"
	}
	return text
}

// IsUpdateCommand - входящее сообщение просит свежую сводку
func IsUpdateCommand(body string) bool {
	return strings.EqualFold(strings.TrimSpace(body), "UPDATE")
}
