package domain

import (
	"time"
)

// Модули Zoho CRM, которые синхронизируются
const (
	ModuleLeads = "Leads"
	ModuleDeals = "Deals"
)

// UnknownValue подставляется вместо отсутствующих текстовых полей CRM
const UnknownValue = "Unknown"

// Lead - лид из CRM (таблица crm_leads)
type Lead struct {
	LeadID       string    `db:"lead_id" json:"lead_id"`
	OwnerName    string    `db:"owner_name" json:"owner_name"`
	Status       string    `db:"status" json:"status"`
	Source       string    `db:"source" json:"source"`
	CreatedTime  time.Time `db:"created_time" json:"created_time"`
	ModifiedTime time.Time `db:"modified_time" json:"modified_time"`
	IsConverted  bool      `db:"is_converted" json:"is_converted"`
}

// Deal - сделка из CRM (таблица crm_deals)
type Deal struct {
	DealID       string     `db:"deal_id" json:"deal_id"`
	LeadID       *string    `db:"lead_id" json:"lead_id"`
	DealName     string     `db:"deal_name" json:"deal_name"`
	OwnerName    string     `db:"owner_name" json:"owner_name"`
	Stage        string     `db:"stage" json:"stage"`
	Source       string     `db:"source" json:"source"`
	Amount       float64    `db:"amount" json:"amount"`
	CreatedTime  time.Time  `db:"created_time" json:"created_time"`
	ModifiedTime time.Time  `db:"modified_time" json:"modified_time"`
	ClosedTime   *time.Time `db:"closed_time" json:"closed_time"`
}

// SyncCursor - водяная метка синхронизации модуля (таблица sync_state)
type SyncCursor struct {
	ModuleName string    `db:"module_name" json:"module_name"`
	Watermark  time.Time `db:"last_sync_time" json:"last_sync_time"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DateRange - полуинтервал [From, To)
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains проверяет попадание момента в интервал
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}
