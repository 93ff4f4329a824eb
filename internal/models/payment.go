package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinPackages maps purchasable coin amounts to their USD price.
var CoinPackages = map[int]decimal.Decimal{
	10:   decimal.NewFromInt(1),
	150:  decimal.NewFromInt(10),
	500:  decimal.NewFromInt(20),
	1000: decimal.NewFromInt(35),
}

// Payment records a confirmed coin purchase. The fiat charge itself
// happens on an external gateway; the core only records the result.
type Payment struct {
	ID        uuid.UUID       `json:"id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	Coins     int             `json:"coins"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	CreatedAt time.Time       `json:"created_at"`
}
