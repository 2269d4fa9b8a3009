package routing

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02/01/2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseDate accepts ISO dates and the dd.mm.yyyy forms common on Swiss paperwork.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var knownCurrencies = []string{"CHF", "EUR", "USD", "GBP"}

func detectCurrency(amount string) string {
	upper := strings.ToUpper(amount)
	if strings.Contains(upper, "FR.") || strings.Contains(upper, "SFR") {
		return "CHF"
	}
	for _, c := range knownCurrencies {
		if strings.Contains(upper, c) {
			return c
		}
	}
	if strings.Contains(amount, "€") {
		return "EUR"
	}
	if strings.Contains(amount, "$") {
		return "USD"
	}
	return ""
}

// parseAmount reads values like "CHF 1'234.50", "1.234,50 EUR" or "120.-".
func parseAmount(value string) (float64, bool) {
	value = strings.TrimSpace(width.Narrow.String(value))
	value = strings.TrimSuffix(value, ".-")
	value = strings.TrimSuffix(value, ".–")

	var b strings.Builder
	negative := false
	for _, r := range value {
		switch {
		case isASCIIDigit(r):
			b.WriteRune(r)
		case (r == '.' || r == ',') && b.Len() > 0:
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = true
		}
	}
	digits := b.String()
	if digits == "" || strings.Trim(digits, ".,") == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(digits, ".")
	lastComma := strings.LastIndex(digits, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			digits = strings.ReplaceAll(digits, ".", "")
			digits = strings.Replace(digits, ",", ".", 1)
		} else {
			digits = strings.ReplaceAll(digits, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(digits, ",") == 1 && len(digits)-lastComma-1 <= 2 {
			digits = strings.Replace(digits, ",", ".", 1)
		} else {
			digits = strings.ReplaceAll(digits, ",", "")
		}
	case strings.Count(digits, ".") > 1:
		digits = strings.ReplaceAll(digits, ".", "")
	}
	digits = strings.Trim(digits, ".")

	amount, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		amount = -amount
	}
	return amount, true
}

// normalizeAHV formats a 13-digit Swiss social security number as
// 756.XXXX.XXXX.XX. Fullwidth digits from OCR are folded to ASCII first.
// Anything else is returned trimmed and unchanged.
func normalizeAHV(value string) string {
	value = strings.TrimSpace(value)
	var digits []byte
	for _, r := range width.Narrow.String(value) {
		if isASCIIDigit(r) {
			digits = append(digits, byte(r))
		}
	}
	if len(digits) != 13 || string(digits[:3]) != "756" {
		return value
	}
	d := string(digits)
	return d[:3] + "." + d[3:7] + "." + d[7:11] + "." + d[11:]
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
