// Путь: internal/service/crmsync/mapping.go
package crmsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/zoho"
)

func textOrUnknown(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return domain.UnknownValue
	}
	return *v
}

func ownerName(owner *zoho.Lookup) string {
	if owner == nil || owner.Name == "" {
		return domain.UnknownValue
	}
	return owner.Name
}

// isClosedStage - признак закрытой сделки (выигранной или проигранной)
func isClosedStage(stage string) bool {
	return strings.Contains(strings.ToLower(stage), "closed")
}

// MapLead переводит запись CRM в локальный лид
func MapLead(raw json.RawMessage) (domain.Lead, error) {
	var rec zoho.LeadRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Lead{}, fmt.Errorf("failed to decode lead: %w", err)
	}
	if rec.ID == "" {
		return domain.Lead{}, fmt.Errorf("lead without id")
	}

	created, err := zoho.ParseTime(rec.CreatedTime)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("lead %s: created time: %w", rec.ID, err)
	}
	modified, err := zoho.ParseTime(rec.ModifiedTime)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("lead %s: modified time: %w", rec.ID, err)
	}

	lead := domain.Lead{
		LeadID:       rec.ID,
		OwnerName:    ownerName(rec.Owner),
		Status:       textOrUnknown(rec.LeadStatus),
		Source:       textOrUnknown(rec.LeadSource),
		CreatedTime:  created.UTC(),
		ModifiedTime: modified.UTC(),
	}
	if rec.IsConverted != nil {
		lead.IsConverted = *rec.IsConverted
	}
	return lead, nil
}

// MapDeal переводит запись CRM в локальную сделку
func MapDeal(raw json.RawMessage) (domain.Deal, error) {
	var rec zoho.DealRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Deal{}, fmt.Errorf("failed to decode deal: %w", err)
	}
	if rec.ID == "" {
		return domain.Deal{}, fmt.Errorf("deal without id")
	}

	created, err := zoho.ParseTime(rec.CreatedTime)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal %s: created time: %w", rec.ID, err)
	}
	modified, err := zoho.ParseTime(rec.ModifiedTime)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal %s: modified time: %w", rec.ID, err)
	}

	deal := domain.Deal{
		DealID:       rec.ID,
		OwnerName:    ownerName(rec.Owner),
		Stage:        textOrUnknown(rec.Stage),
		Source:       textOrUnknown(rec.LeadSource),
		Amount:       float64(rec.Amount),
		CreatedTime:  created.UTC(),
		ModifiedTime: modified.UTC(),
	}
	if rec.DealName != nil {
		deal.DealName = *rec.DealName
	}
	if rec.LeadName != nil && rec.LeadName.ID != "" {
		id := rec.LeadName.ID
		deal.LeadID = &id
	}
	if deal.Amount < 0 {
		deal.Amount = 0
	}
	if isClosedStage(deal.Stage) {
		closed := deal.ModifiedTime
		deal.ClosedTime = &closed
	}
	return deal, nil
}

// dedupe оставляет последнюю версию каждой записи, сохраняя порядок первого появления
func dedupe[T any](items []T, key func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}
