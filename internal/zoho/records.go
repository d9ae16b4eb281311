package zoho

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// watermarkLayout - Zoho не всегда корректно принимает доли секунды
const watermarkLayout = "2006-01-02T15:04:05Z"

// FormatWatermark приводит метку к виду 2026-02-21T08:32:12Z
func FormatWatermark(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(watermarkLayout)
}

// ParseTime разбирает время из ответа CRM (2026-02-21T14:02:12+05:30)
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}

// Lookup - ссылка на запись другого модуля
type Lookup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LeadRecord - лид в ответе /Leads/search
type LeadRecord struct {
	ID           string  `json:"id"`
	Owner        *Lookup `json:"Owner"`
	LeadStatus   *string `json:"Lead_Status"`
	LeadSource   *string `json:"Lead_Source"`
	CreatedTime  string  `json:"Created_Time"`
	ModifiedTime string  `json:"Modified_Time"`
	IsConverted  *bool   `json:"Is_Converted"`
}

// DealRecord - сделка в ответе /Deals/search
type DealRecord struct {
	ID           string    `json:"id"`
	LeadName     *Lookup   `json:"Lead_Name"`
	DealName     *string   `json:"Deal_Name"`
	Owner        *Lookup   `json:"Owner"`
	Stage        *string   `json:"Stage"`
	LeadSource   *string   `json:"Lead_Source"`
	Amount       FlexFloat `json:"Amount"`
	CreatedTime  string    `json:"Created_Time"`
	ModifiedTime string    `json:"Modified_Time"`
}

// FlexFloat принимает число, строку с числом или null
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*f = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(data), err)
	}
	*f = FlexFloat(v)
	return nil
}

// modifiedOnly - для вычисления метки по исходной пачке
type modifiedOnly struct {
	ModifiedTime string `json:"Modified_Time"`
}

// MaxModifiedTime возвращает наибольшее Modified_Time в пачке сырых записей
func MaxModifiedTime(records []json.RawMessage) (time.Time, bool) {
	var max time.Time
	found := false
	for _, raw := range records {
		var rec modifiedOnly
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		t, err := ParseTime(rec.ModifiedTime)
		if err != nil {
			continue
		}
		if !found || t.After(max) {
			max = t
			found = true
		}
	}
	return max, found
}
