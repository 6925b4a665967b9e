package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PositiveDecimal parses a decimal config value that must be > 0.
func PositiveDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s is not positive", raw)
	}
	return d, nil
}
