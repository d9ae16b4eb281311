// Путь: internal/service/formatter/formatter.go
package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/osteele/liquid"
)

// lakh - 1 лакх = 100 000 рупий
const lakh = 100000

// Formatter собирает короткие текстовые сообщения по шаблонам
type Formatter struct {
	engine *liquid.Engine
}

// NewFormatter создает новый форматтер
func NewFormatter() *Formatter {
	return &Formatter{engine: liquid.NewEngine()}
}

// Render подставляет значения в liquid-шаблон
func (f *Formatter) Render(template string, bindings map[string]interface{}) (string, error) {
	out, err := f.engine.ParseAndRenderString(template, bindings)
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return out, nil
}

// Lakh переводит сумму в лакхи с одним знаком: 1250000 -> "12.5"
func Lakh(amount float64) string {
	return strconv.FormatFloat(amount/lakh, 'f', 1, 64)
}

// Rupees - сумма с разделителями разрядов: ₹1,250,000
func Rupees(amount float64) string {
	return "₹" + humanize.Commaf(amount)
}

// Percent - число без лишних нулей со знаком процента
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// Count - целое с разделителями разрядов
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// SourceList - "Website: 12, Referral: 3"
func SourceList(names []string, counts []int) string {
	parts := make([]string, 0, len(names))
	for i, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, counts[i]))
	}
	return strings.Join(parts, ", ")
}
