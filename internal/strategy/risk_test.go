package strategy

import (
	"errors"
	"testing"
	"time"
)

func TestCheckBookAge(t *testing.T) {
	if err := CheckBookAge(0, time.Hour); err != nil {
		t.Fatalf("zero max age should disable the check, got %v", err)
	}
	if err := CheckBookAge(5*time.Second, 5*time.Second); err != nil {
		t.Fatalf("age equal to limit should pass, got %v", err)
	}
	err := CheckBookAge(5*time.Second, 6*time.Second)
	if !errors.Is(err, ErrMarketStale) {
		t.Fatalf("expected ErrMarketStale, got %v", err)
	}
}
