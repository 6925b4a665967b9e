package strategy

import (
	"errors"
	"fmt"
	"time"
)

var ErrMarketStale = errors.New("market data stale")

// CheckBookAge rejects a top-of-book older than maxAge. A zero maxAge disables the check.
func CheckBookAge(maxAge, age time.Duration) error {
	if maxAge > 0 && age > maxAge {
		return fmt.Errorf("top-of-book age %s exceeds %s: %w", age, maxAge, ErrMarketStale)
	}
	return nil
}
