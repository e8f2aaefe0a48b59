package portfolio

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
)

// Service assembles stored positions and prices into portfolio snapshots
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "portfolio").Logger(),
	}
}

// Positions returns the stored positions
func (s *Service) Positions() ([]Position, error) {
	return s.repo.ListPositions()
}

// SetPositions replaces the stored position set
func (s *Service) SetPositions(positions []Position) error {
	return s.repo.ReplacePositions(positions)
}

// Prices returns the latest stored price per symbol
func (s *Service) Prices() (map[string]decimal.Decimal, error) {
	return s.repo.AllPrices()
}

// Snapshot builds a rebalance-ready portfolio from the stored positions, the
// latest stored prices and the given target. A position without a stored
// price fails here rather than inside the optimizer.
func (s *Service) Snapshot(target domain.TargetAllocation) (*domain.Portfolio, error) {
	positions, err := s.repo.ListPositions()
	if err != nil {
		return nil, err
	}

	prices, err := s.repo.AllPrices()
	if err != nil {
		return nil, err
	}

	holdings := make([]domain.Stock, 0, len(positions))
	for _, pos := range positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: no stored price for %s", domain.ErrMissingPrice, pos.Symbol)
		}
		stock, err := domain.NewStock(pos.Symbol, pos.Quantity, price)
		if err != nil {
			return nil, fmt.Errorf("stored position %s: %w", pos.Symbol, err)
		}
		holdings = append(holdings, stock)
	}

	// Lookup prices cover target symbols that aren't currently held
	lookup := make(map[string]decimal.Decimal)
	for _, symbol := range target.Symbols() {
		if price, ok := prices[symbol]; ok {
			lookup[symbol] = price
		}
	}

	return domain.NewPortfolio(holdings, target, lookup)
}
