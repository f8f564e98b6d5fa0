package market

import (
	"errors"
	"testing"
)

func TestNextPriceBuyAndSell(t *testing.T) {
	tests := []struct {
		name   string
		price  int64
		shares int64
		pool   int64
		side   string
		want   int64
	}{
		// 50/1000 of the pool: (0.05)^1.2 ~= 0.027464 impact.
		{name: "buy moves price up", price: 1000, shares: 50, pool: 1000, side: SideBuy, want: 1027},
		{name: "sell moves price down", price: 1000, shares: 50, pool: 1000, side: SideSell, want: 973},
		{name: "whole pool buy doubles price", price: 1000, shares: 1000, pool: 1000, side: SideBuy, want: 2000},
		{name: "tiny trade rounds to same price", price: 1000, shares: 1, pool: 1_000_000, side: SideBuy, want: 1000},
	}
	for _, tc := range tests {
		got, err := NextPrice(tc.price, tc.shares, tc.pool, tc.side)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestNextPriceSymmetry(t *testing.T) {
	up, err := NextPrice(1000, 50, 1000, SideBuy)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	down, err := NextPrice(1000, 50, 1000, SideSell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if up-1000 != 1000-down {
		t.Fatalf("expected symmetric moves around 1000, got up=%d down=%d", up, down)
	}
}

func TestNextPriceEmptyPool(t *testing.T) {
	if _, err := NextPrice(1000, 10, 0, SideBuy); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
}

func TestNextPriceFloorBreach(t *testing.T) {
	// Selling the entire pool would zero the price.
	if _, err := NextPrice(1000, 1000, 1000, SideSell); !errors.Is(err, ErrInvalidPriceState) {
		t.Fatalf("expected ErrInvalidPriceState, got %v", err)
	}
}

func TestNextPriceValidation(t *testing.T) {
	if _, err := NextPrice(1000, 0, 1000, SideBuy); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero shares, got %v", err)
	}
	if _, err := NextPrice(1000, -5, 1000, SideSell); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for negative shares, got %v", err)
	}
	if _, err := NextPrice(1000, 10, 1000, "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown side, got %v", err)
	}
}
