package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Price formats a ruble amount with two decimals.
// Example: Price(decimal.NewFromInt(1199), "ru") => "1 199.00 ₽"
func Price(amount decimal.Decimal, lang string) string {
	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(2)
	whole, frac := s, "00"
	if i := strings.IndexByte(s, '.'); i != -1 {
		whole, frac = s[:i], s[i+1:]
	}
	var out string
	switch strings.ToLower(lang) {
	case "en":
		out = "₽" + thousandSep(whole, ",") + "." + frac
	default:
		out = thousandSep(whole, " ") + "." + frac + " ₽"
	}
	if neg {
		return "-" + out
	}
	return out
}

// Count formats an item count with a localized unit suffix.
func Count(n int, lang string) string {
	if strings.ToLower(lang) == "en" {
		if n == 1 {
			return "1 item"
		}
		return thousandSep(itoa(n), ",") + " items"
	}
	return thousandSep(itoa(n), " ") + " шт."
}

func thousandSep(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	for i, c := range digits {
		if i != 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(c)
	}
	return b.String()
}

func itoa(n int) string {
	return decimal.NewFromInt(int64(n)).String()
}
