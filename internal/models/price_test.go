package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketPrice_PricePerKg(t *testing.T) {
	tests := []struct {
		quintal string
		want    string
	}{
		{"2700", "27"},
		{"2275.50", "22.76"},
		{"0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.quintal, func(t *testing.T) {
			p := &MarketPrice{ModalPricePerQuintal: decimal.RequireFromString(tt.quintal)}
			if got := p.PricePerKg(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("PricePerKg() = %s, want %s", got, tt.want)
			}
		})
	}
}
