package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "")

// ParseAmount parses a closed-business amount such as "$1,250.50".
// Empty input is zero. Negative or non-numeric input is an
// InvalidAmountError.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := amountCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InvalidAmountError{Value: raw}
	}
	if d.IsNegative() {
		return decimal.Zero, &InvalidAmountError{Value: raw}
	}
	return d, nil
}
