package feeoracle

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/shopspring/decimal"
)

func TestStatic(t *testing.T) {
	fee, err := Static(money.MustParse("0.5")).CreationFee(context.Background())
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee != money.MustParse("0.5") {
		t.Fatalf("fee = %s, want 0.5", fee)
	}
	if _, err := Static(-1).CreationFee(context.Background()); err == nil {
		t.Fatal("expected error for negative fee")
	}
}

func TestConverting(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		rate    string
		rateErr error
		want    string
		wantErr bool
	}{
		{name: "whole", ref: "5", rate: "0.25", want: "1.25"},
		{name: "rounds down", ref: "1", rate: "0.3333333333", want: "0.333333"},
		{name: "zero rate", ref: "1", rate: "0", wantErr: true},
		{name: "negative reference", ref: "-1", rate: "1", wantErr: true},
		{name: "source error", ref: "1", rateErr: errors.New("offline"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := Converting{
				Reference: decimal.RequireFromString(tt.ref),
				Rates: RateFunc(func(context.Context) (decimal.Decimal, error) {
					if tt.rateErr != nil {
						return decimal.Zero, tt.rateErr
					}
					return decimal.RequireFromString(tt.rate), nil
				}),
			}
			fee, err := oracle.CreationFee(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("fee: %v", err)
			}
			if fee != money.MustParse(tt.want) {
				t.Fatalf("fee = %s, want %s", fee, tt.want)
			}
		})
	}
}

func TestConvertingRequiresSource(t *testing.T) {
	if _, err := (Converting{}).CreationFee(context.Background()); err == nil {
		t.Fatal("expected error without rate source")
	}
}
