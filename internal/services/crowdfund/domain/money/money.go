// Package money defines the fixed-point unit of account used by campaigns.
//
// Amounts are whole micro-units held in an int64, so every commission split,
// refund and dividend credit is exact integer arithmetic. Decimal parsing and
// formatting, and the wide intermediate products of pro-rata math, go through
// shopspring/decimal.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits an Amount carries.
const Decimals = 6

// Scale is the number of micro-units in one whole unit.
const Scale = 1_000_000

const (
	// NetPercent is the share of a gross payment credited to the campaign.
	NetPercent = 88
	// CommissionPercent is the share of a gross payment routed to the treasury.
	CommissionPercent = 100 - NetPercent
)

var (
	// ErrInvalidAmount indicates an amount that cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrTooPrecise indicates more fractional digits than Decimals.
	ErrTooPrecise = errors.New("amount has too many decimal places")
	// ErrOverflow indicates an amount outside the int64 micro-unit range.
	ErrOverflow = errors.New("amount overflows")
)

// Amount is a quantity of the unit of account in micro-units.
type Amount int64

// Zero is the empty amount.
const Zero Amount = 0

// ParseAmount parses a decimal string such as "0.1" or "10".
func ParseAmount(value string) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return FromDecimal(d)
}

// MustParse parses value and panics on error. Intended for constants and tests.
func MustParse(value string) Amount {
	a, err := ParseAmount(value)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts a decimal value into micro-units without rounding.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if !scaled.BigInt().IsInt64() {
		return 0, ErrOverflow
	}
	return Amount(scaled.IntPart()), nil
}

// Units returns an amount of whole units.
func Units(n int64) Amount {
	return Amount(n * Scale)
}

// Decimal returns the amount as a decimal number of units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Decimals)
}

// String formats the amount in units with trailing zeros trimmed.
func (a Amount) String() string {
	return a.Decimal().String()
}

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// MulInt multiplies the amount by n, reporting overflow.
func (a Amount) MulInt(n int64) (Amount, error) {
	product := a.Decimal().Mul(decimal.NewFromInt(n))
	return FromDecimal(product)
}

// Net returns the portion of gross credited to a campaign, rounded down.
func Net(gross Amount) Amount {
	return mulDivFloor(int64(gross), NetPercent, 100)
}

// Commission returns the treasury share of gross. Net(g)+Commission(g) == g.
func Commission(gross Amount) Amount {
	return gross - Net(gross)
}

// ProRata returns floor(total * part / whole). Whole must be positive.
func ProRata(total Amount, part, whole int64) Amount {
	if whole <= 0 || part <= 0 || total <= 0 {
		return 0
	}
	return mulDivFloor(int64(total), part, whole)
}

// mulDivFloor computes floor(a*b/c) for non-negative operands without
// overflowing the intermediate product.
func mulDivFloor(a, b, c int64) Amount {
	quotient, _ := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b)).QuoRem(decimal.NewFromInt(c), 0)
	return Amount(quotient.IntPart())
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number of units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
