package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KgPerQuintal converts mandi quotes, which are per quintal, to per-kg prices
const KgPerQuintal = 100

// MarketPrice is one mandi quote for a crop
type MarketPrice struct {
	ID                   int64           `json:"id,omitempty" db:"id"`
	CropID               string          `json:"crop_id" db:"crop_id"`
	Commodity            string          `json:"commodity" db:"commodity"`
	Market               string          `json:"market" db:"market"`
	ModalPricePerQuintal decimal.Decimal `json:"modal_price_per_quintal" db:"modal_price_per_quintal"`
	ObservedAt           time.Time       `json:"observed_at" db:"observed_at"`
}

// PricePerKg converts the modal quintal price to rupees per kg, rounded to paise
func (p *MarketPrice) PricePerKg() decimal.Decimal {
	return p.ModalPricePerQuintal.Div(decimal.NewFromInt(KgPerQuintal)).Round(2)
}
