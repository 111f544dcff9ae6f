package bidsheet

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseBrazilianDecimal parses amounts written with dot thousand separators
// and a decimal comma. A leading "R$" is ignored.
// Examples: "1.234,56" -> 1234.56, "R$ 32,50" -> 32.50, "1.200" -> 1200.
func parseBrazilianDecimal(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	clean = strings.ReplaceAll(clean, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	return decimal.NewFromString(clean)
}
