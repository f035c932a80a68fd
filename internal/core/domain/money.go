package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Balances and amounts carry two fractional digits.
const Scale = 2

var (
	// "1.000,00", "1000,5", "12"
	commaDecimal = regexp.MustCompile(`^\d{1,3}(\.\d{3})*(,\d{1,2})?$|^\d+(,\d{1,2})?$`)
	// "40.00", "0.5"
	dotDecimal = regexp.MustCompile(`^\d+\.\d{1,2}$`)
	// "1.000", "12.345.678"
	dotThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// ParseAmount normalizes a wire amount into a positive two-decimal value.
//
// A comma is always the decimal separator and dots are then thousands
// separators ("1.000,00" is one thousand). Without a comma, a single dot
// followed by one or two digits is a decimal point ("40.00"), and dotted
// groups of three are thousands ("1.000").
//
// Dot-only input with one or two fraction digits is always read as a
// decimal point, so "40.00" is forty, not four thousand.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	var normalized string
	switch {
	case strings.Contains(s, ","):
		if !commaDecimal.MatchString(s) {
			return decimal.Zero, ErrInvalidAmount
		}
		normalized = strings.ReplaceAll(s, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
	case dotDecimal.MatchString(s):
		normalized = s
	case dotThousands.MatchString(s):
		normalized = strings.ReplaceAll(s, ".", "")
	case isDigits(s):
		normalized = s
	default:
		return decimal.Zero, ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return ValidateAmount(amount)
}

// ValidateAmount rejects non-positive amounts and amounts with more than
// two fractional digits.
func ValidateAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount.Truncate(Scale), nil
}

// FormatAmount renders an amount with exactly two decimals ("1000.00").
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
