// Package fx resolves date-indexed exchange rates against the local currency.
package fx

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// Quote is the local-currency value of one unit of Currency on Date.
type Quote struct {
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`
	Rate     float64   `json:"rate"`
}

// Source loads raw quotes for a currency within [from, to].
type Source interface {
	Quotes(ctx context.Context, currency string, from, to time.Time) ([]Quote, error)
}

// Resolver converts between two currencies on a date.
type Resolver interface {
	Rate(ctx context.Context, from, to string, date time.Time) (float64, error)
}

// ErrInvalidCurrency indicates a code that is neither ISO 4217 nor a quotable ticker.
var ErrInvalidCurrency = errors.New("fx: invalid currency code")

// MissingRateError reports that no quote could be resolved for a currency and date.
type MissingRateError struct {
	Currency string
	Date     time.Time
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("fx: missing rate for %s on %s", e.Currency, e.Date.Format("2006-01-02"))
}

// NormalizeCurrency validates code as ISO 4217 and returns its canonical form.
func NormalizeCurrency(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{2,4}$`)

// NormalizeCode canonicalises an ISO 4217 code and passes through other uppercase tickers of
// three to five characters (GRT, USDC, ETH). Whether a ticker has quotes is the source's
// concern: an unknown one resolves to a MissingRateError.
func NormalizeCode(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if unit, err := currency.ParseISO(trimmed); err == nil {
		return unit.String(), nil
	}
	if tickerPattern.MatchString(trimmed) {
		return trimmed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
