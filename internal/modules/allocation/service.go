package allocation

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
)

// ErrFundNotFound is returned when a fund id has no stored definition
var ErrFundNotFound = fmt.Errorf("fund not found")

// Service provides fund allocation lookups on top of the repository
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new allocation service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "allocation").Logger(),
	}
}

// EnsureDefaults seeds the built-in funds when the funds table is empty,
// then layers any funds from the optional seed file on top. Seed-file funds
// overwrite built-ins with the same id.
func (s *Service) EnsureDefaults(seedPath string) error {
	count, err := s.repo.Count()
	if err != nil {
		return err
	}

	if count == 0 {
		for _, fund := range BuiltinFunds() {
			if err := s.repo.Upsert(fund); err != nil {
				return err
			}
		}
		s.log.Info().Int("funds", len(BuiltinFunds())).Msg("Seeded built-in funds")
	}

	if seedPath == "" {
		return nil
	}

	funds, err := LoadSeedFile(seedPath)
	if err != nil {
		return fmt.Errorf("failed to load allocation seed: %w", err)
	}
	for _, fund := range funds {
		if err := s.repo.Upsert(fund); err != nil {
			return err
		}
	}
	s.log.Info().Int("funds", len(funds)).Str("path", seedPath).Msg("Loaded allocation seed file")

	return nil
}

// Get returns a fund by id
func (s *Service) Get(fundID string) (*Fund, error) {
	fund, err := s.repo.Get(fundID)
	if err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, fmt.Errorf("%w: %s", ErrFundNotFound, fundID)
	}
	return fund, nil
}

// List returns all stored funds
func (s *Service) List() ([]Fund, error) {
	return s.repo.List()
}

// Target returns the validated rebalance target for a fund
func (s *Service) Target(fundID string) (domain.TargetAllocation, error) {
	fund, err := s.Get(fundID)
	if err != nil {
		return domain.TargetAllocation{}, err
	}
	return fund.Target()
}

// Scraper fetches a live weight table for a fund page slug
type Scraper interface {
	ScrapeAllocation(fundSlug string) (map[string]decimal.Decimal, error)
}

// SyncFromSite replaces a stored fund's weights with the live table scraped
// from its public page. Scraped percentages rarely sum to exactly 1, so they
// are normalized before validation. The fund must already exist; its label
// is kept.
func (s *Service) SyncFromSite(scraper Scraper, fundID string) (*Fund, error) {
	fund, err := s.Get(fundID)
	if err != nil {
		return nil, err
	}

	scraped, err := scraper.ScrapeAllocation(fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape fund %s: %w", fundID, err)
	}

	weights, err := normalizeWeights(scraped)
	if err != nil {
		return nil, fmt.Errorf("scraped allocation for %s: %w", fundID, err)
	}

	fund.Weights = weights
	if _, err := fund.Target(); err != nil {
		return nil, fmt.Errorf("scraped allocation for %s: %w", fundID, err)
	}

	if err := s.repo.Upsert(*fund); err != nil {
		return nil, err
	}

	s.log.Info().Str("fund", fundID).Int("symbols", len(weights)).Msg("Synced fund allocation from site")
	return s.Get(fundID)
}

// normalizeWeights scales a weight table so it sums to exactly 1.
// The rounding remainder is folded into the largest weight, keeping every
// entry an exact decimal.
func normalizeWeights(raw map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty weight table")
	}

	total := decimal.Zero
	for symbol, w := range raw {
		if w.IsNegative() {
			return nil, fmt.Errorf("negative weight for %s", symbol)
		}
		total = total.Add(w)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("weights sum to zero")
	}

	normalized := make(map[string]decimal.Decimal, len(raw))
	sum := decimal.Zero
	var largest string
	for symbol, w := range raw {
		scaled := w.DivRound(total, 8)
		normalized[symbol] = scaled
		sum = sum.Add(scaled)
		if largest == "" || normalized[symbol].GreaterThan(normalized[largest]) {
			largest = symbol
		}
	}

	if remainder := decimal.NewFromInt(1).Sub(sum); !remainder.IsZero() {
		normalized[largest] = normalized[largest].Add(remainder)
	}

	return normalized, nil
}
