// Package allocation manages fund allocation definitions: the named model
// portfolios a rebalance can target, stored as exact decimal weight tables.
package allocation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
)

// Well-known fund identifiers. These mirror the Fintual model portfolios
// the default seed data is derived from.
const (
	FundRiskyNorris            = "risky-norris"
	FundModeratePitt           = "moderate-pitt"
	FundConservativeClooney    = "conservative-clooney"
	FundVeryConservativeStreep = "very-conservative-streep"
)

// Fund is a named model portfolio: a label plus a weight table over symbols.
// Weights are exact decimals and must sum to 1 to be usable as a rebalance
// target.
type Fund struct {
	ID        string                     `json:"id"`
	Label     string                     `json:"label"`
	Weights   map[string]decimal.Decimal `json:"weights"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Target converts the fund's weight table into a validated rebalance target.
func (f Fund) Target() (domain.TargetAllocation, error) {
	return domain.NewTargetAllocation(f.Weights)
}

// BuiltinFunds returns the built-in fund definitions used to seed an empty
// database. Weights follow the published Fintual model portfolios.
func BuiltinFunds() []Fund {
	return []Fund{
		{
			ID:    FundRiskyNorris,
			Label: "Risky (Norris)",
			Weights: weightTable(map[string]string{
				"ESGV": "0.31",
				"QQQM": "0.18",
				"FTEC": "0.18",
				"SOXX": "0.10",
				"XLY":  "0.05",
				"FLCH": "0.04",
				"FLIN": "0.04",
				"VUG":  "0.05",
				"IAUM": "0.05",
			}),
		},
		{
			ID:    FundModeratePitt,
			Label: "Moderate (Pitt)",
			Weights: weightTable(map[string]string{
				"ESGV": "0.25",
				"QQQM": "0.10",
				"IAUM": "0.06",
				"FLCH": "0.04",
				"FLIN": "0.03",
				"BND":  "0.25",
				"BLV":  "0.14",
				"TIP":  "0.13",
			}),
		},
		{
			ID:    FundConservativeClooney,
			Label: "Conservative (Clooney)",
			Weights: weightTable(map[string]string{
				"ESGV": "0.12",
				"IAUM": "0.03",
				"BND":  "0.40",
				"BLV":  "0.25",
				"TIP":  "0.20",
			}),
		},
		{
			ID:    FundVeryConservativeStreep,
			Label: "Very Conservative (Streep)",
			Weights: weightTable(map[string]string{
				"BND": "0.65",
				"TIP": "0.20",
				"BLV": "0.15",
			}),
		},
	}
}

func weightTable(raw map[string]string) map[string]decimal.Decimal {
	weights := make(map[string]decimal.Decimal, len(raw))
	for symbol, w := range raw {
		weights[symbol] = decimal.RequireFromString(w)
	}
	return weights
}
