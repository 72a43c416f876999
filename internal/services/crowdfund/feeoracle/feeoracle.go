// Package feeoracle supplies the campaign creation fee.
package feeoracle

import (
	"context"
	"fmt"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/shopspring/decimal"
)

// Oracle reports the current creation fee in the unit of account.
type Oracle interface {
	CreationFee(ctx context.Context) (money.Amount, error)
}

// Static returns a fixed fee.
type Static money.Amount

// CreationFee implements Oracle.
func (s Static) CreationFee(context.Context) (money.Amount, error) {
	if s < 0 {
		return 0, fmt.Errorf("creation fee must not be negative")
	}
	return money.Amount(s), nil
}

// RateSource reports how many units of account one reference unit is worth.
type RateSource interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// RateFunc adapts a function to RateSource.
type RateFunc func(ctx context.Context) (decimal.Decimal, error)

// Rate implements RateSource.
func (f RateFunc) Rate(ctx context.Context) (decimal.Decimal, error) { return f(ctx) }

// Converting prices the fee in a reference currency and converts it with a
// rate source, rounding down to the unit-of-account precision.
type Converting struct {
	Reference decimal.Decimal
	Rates     RateSource
}

// CreationFee implements Oracle.
func (c Converting) CreationFee(ctx context.Context) (money.Amount, error) {
	if c.Rates == nil {
		return 0, fmt.Errorf("rate source is required")
	}
	rate, err := c.Rates.Rate(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rate: %w", err)
	}
	if !rate.IsPositive() {
		return 0, fmt.Errorf("rate must be positive, got %s", rate)
	}
	if c.Reference.IsNegative() {
		return 0, fmt.Errorf("reference fee must not be negative")
	}
	fee := c.Reference.Mul(rate).Truncate(money.Decimals)
	return money.FromDecimal(fee)
}
