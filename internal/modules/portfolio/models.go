// Package portfolio manages held positions and the latest known prices, and
// assembles them into portfolio snapshots for rebalancing.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a held quantity of a symbol
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quote is the latest known price for a symbol. Source records where the
// price came from ("fintual", "fallback", "manual").
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updated_at"`
}
