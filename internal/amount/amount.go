// Package amount validates and parses user-entered transfer amounts.
package amount

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxFractionDigits is the most digits accepted after the decimal point.
const MaxFractionDigits = 8

var (
	ErrInvalid   = errors.New("invalid amount")
	ErrPrecision = errors.New("too many fractional digits")
)

// inputPattern allows digits with at most one decimal point, including
// partial entries such as "1." or ".5".
var inputPattern = regexp.MustCompile(`^\d*\.?\d*$`)

// Validate reports why raw cannot be held as an amount. The empty string is
// valid and means "no amount".
func Validate(raw string) error {
	if raw == "" {
		return nil
	}
	if !inputPattern.MatchString(raw) {
		return ErrInvalid
	}
	if parts := strings.Split(raw, "."); len(parts) == 2 && len(parts[1]) > MaxFractionDigits {
		return ErrPrecision
	}
	return nil
}

// Parse converts an accepted input into a decimal. Partial inputs parse
// as their numeric value ("1." is 1, ".5" is 0.5); "" and "." do not parse.
func Parse(raw string) (decimal.Decimal, bool) {
	if raw == "" || raw == "." || !inputPattern.MatchString(raw) {
		return decimal.Zero, false
	}
	if strings.HasPrefix(raw, ".") {
		raw = "0" + raw
	}
	raw = strings.TrimSuffix(raw, ".")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Positive parses raw and reports whether it is strictly greater than zero.
func Positive(raw string) (decimal.Decimal, bool) {
	d, ok := Parse(raw)
	if !ok || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
