package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

// EnrichDocumentData returns a copy of the payload extended with the
// aliases the stored Portuguese templates expect: pt-BR formatted dates,
// money with two comma decimals, and a finalization flag. The payload is
// rooted at "item"; the caller-supplied maps are never mutated. A default
// logo asset is injected when the payload carries none. end_date may arrive
// already display-formatted, so data_fim echoes it as is and end_date_br
// carries the parsed dd/mm/yyyy form.
func EnrichDocumentData(data map[string]any, defaultLogoURL string) map[string]any {
	enriched := make(map[string]any, len(data)+1)
	for k, v := range data {
		enriched[k] = v
	}

	raw, _ := enriched["item"].(map[string]any)
	item := make(map[string]any, len(raw)+24)
	for k, v := range raw {
		item[k] = v
	}

	if _, ok := item["logo_url"]; !ok {
		item["logo_url"] = defaultLogoURL
	}

	status := asString(item["status"])

	aliases := map[string]any{
		"codigo_voucher":    asString(item["voucher_code"]),
		"cliente_nome":      asString(item["client_name"]),
		"cliente_telefone":  asString(item["client_phone"]),
		"passeio_nome":      asString(item["package_name"]),
		"data_inicio":       formatDateBR(item["embark_date"]),
		"data_fim":          asString(item["end_date"]),
		"local_embarque":    asString(item["embark_location"]),
		"horario_embarque":  asString(item["embark_time"]),
		"adultos":           asString(item["adults"]),
		"criancas":          asString(item["children"]),
		"observacao":        asString(item["notes"]),
		"status":            status,
		"valor_parcial":     formatMoneyBR(item["partial_amount"]),
		"valor_no_embarque": formatMoneyBR(item["embark_amount"]),
		"finalizado":        status == workflow.StatusCompleted.String(),

		"embark_date_br":    formatDateBR(item["embark_date"]),
		"end_date_br":       formatDateBR(item["end_date"]),
		"partial_amount_br": formatMoneyBR(item["partial_amount"]),
		"embark_amount_br":  formatMoneyBR(item["embark_amount"]),
		"is_finalized":      status == workflow.StatusCompleted.String(),
	}
	for k, v := range aliases {
		item[k] = v
	}

	enriched["item"] = item
	return enriched
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// formatDateBR renders a date value as dd/mm/yyyy, or "" when the value
// is absent or unparseable.
func formatDateBR(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case time.Time:
		return d.Format("02/01/2006")
	case *time.Time:
		if d == nil {
			return ""
		}
		return d.Format("02/01/2006")
	case string:
		if d == "" {
			return ""
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, d); err == nil {
				return parsed.Format("02/01/2006")
			}
		}
		return ""
	default:
		return ""
	}
}

// formatMoneyBR renders a monetary value with pt-BR separators and two
// decimal places ("1.234,56"). Non-numeric input renders as "0,00".
func formatMoneyBR(v any) string {
	var amount float64
	switch n := v.(type) {
	case float64:
		amount = n
	case float32:
		amount = float64(n)
	case int:
		amount = float64(n)
	case int64:
		amount = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return "0,00"
		}
		amount = parsed
	default:
		return "0,00"
	}

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	fixed := strconv.FormatFloat(amount, 'f', 2, 64)
	intPart, decPart, _ := strings.Cut(fixed, ".")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	return sign + strings.Join(groups, ".") + "," + decPart
}
