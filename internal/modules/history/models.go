// Package history persists completed rebalance runs so past recommendations
// can be reviewed and compared.
package history

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is the stored form of a single rebalance order
type OrderRecord struct {
	Action           string          `json:"action" msgpack:"action"`
	Symbol           string          `json:"symbol" msgpack:"symbol"`
	Shares           int64           `json:"shares" msgpack:"shares"`
	DollarAmount     decimal.Decimal `json:"dollar_amount" msgpack:"dollar_amount"`
	TargetDollars    decimal.Decimal `json:"target_dollars" msgpack:"target_dollars"`
	DeviationDollars decimal.Decimal `json:"deviation_dollars" msgpack:"deviation_dollars"`
}

// Run is one completed rebalance: what was asked for, what came out
type Run struct {
	ID             string          `json:"id" msgpack:"-"`
	CreatedAt      time.Time       `json:"created_at" msgpack:"-"`
	Fund           string          `json:"fund" msgpack:"fund"`
	Strategy       string          `json:"strategy" msgpack:"strategy"`
	Tolerance      decimal.Decimal `json:"tolerance" msgpack:"tolerance"`
	ExtraCash      decimal.Decimal `json:"extra_cash" msgpack:"extra_cash"`
	UsedFallback   bool            `json:"used_fallback" msgpack:"used_fallback"`
	FallbackReason string          `json:"fallback_reason,omitempty" msgpack:"fallback_reason"`
	TotalValue     decimal.Decimal `json:"total_value" msgpack:"total_value"`
	Orders         []OrderRecord   `json:"orders" msgpack:"orders"`
}
