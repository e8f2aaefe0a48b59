package allocation

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape for custom fund definitions:
//
//	funds:
//	  - id: my-fund
//	    label: My Fund
//	    weights:
//	      AAPL: "0.60"
//	      BND: "0.40"
//
// Weights are strings so they parse as exact decimals.
type seedFile struct {
	Funds []seedFund `yaml:"funds"`
}

type seedFund struct {
	ID      string            `yaml:"id"`
	Label   string            `yaml:"label"`
	Weights map[string]string `yaml:"weights"`
}

// LoadSeedFile parses a YAML fund definition file. Every fund must have an
// id and at least one weight; weight tables are validated as rebalance
// targets so malformed seeds fail at load time rather than at rebalance time.
func LoadSeedFile(path string) ([]Fund, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	funds := make([]Fund, 0, len(file.Funds))
	for _, sf := range file.Funds {
		if sf.ID == "" {
			return nil, fmt.Errorf("seed fund missing id")
		}
		label := sf.Label
		if label == "" {
			label = sf.ID
		}

		weights := make(map[string]decimal.Decimal, len(sf.Weights))
		for symbol, raw := range sf.Weights {
			w, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("fund %s: invalid weight %q for %s: %w", sf.ID, raw, symbol, err)
			}
			weights[symbol] = w
		}

		fund := Fund{ID: sf.ID, Label: label, Weights: weights}
		if _, err := fund.Target(); err != nil {
			return nil, fmt.Errorf("fund %s: %w", sf.ID, err)
		}
		funds = append(funds, fund)
	}

	return funds, nil
}
