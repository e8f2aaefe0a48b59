package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles position and price database operations.
// Database: portfolio.db (positions and prices tables).
// Prices are stored as TEXT so decimal values round-trip exactly.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// EnsureSchema creates the position and price tables if they don't exist
func (r *Repository) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		symbol TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS prices (
		symbol TEXT PRIMARY KEY,
		price TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create portfolio schema: %w", err)
	}
	return nil
}

// ListPositions returns all held positions ordered by symbol.
// Zero-quantity rows are excluded.
func (r *Repository) ListPositions() ([]Position, error) {
	rows, err := r.db.Query(
		"SELECT symbol, quantity, updated_at FROM positions WHERE quantity > 0 ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var pos Position
		var updatedAtUnix int64
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &updatedAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// ReplacePositions atomically replaces the full position set
func (r *Repository) ReplacePositions(positions []Position) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin position replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM positions"); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}

	now := time.Now().UTC().Unix()
	for _, pos := range positions {
		if pos.Quantity < 0 {
			return fmt.Errorf("negative quantity %d for %s", pos.Quantity, pos.Symbol)
		}
		if pos.Quantity == 0 {
			continue
		}
		_, err := tx.Exec(
			"INSERT INTO positions (symbol, quantity, updated_at) VALUES (?, ?, ?)",
			pos.Symbol, pos.Quantity, now)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", pos.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit position replace: %w", err)
	}
	return nil
}

// UpsertPrice stores the latest price for a symbol
func (r *Repository) UpsertPrice(symbol string, price decimal.Decimal, source string) error {
	if !price.IsPositive() {
		return fmt.Errorf("non-positive price %s for %s", price, symbol)
	}

	_, err := r.db.Exec(`
		INSERT INTO prices (symbol, price, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		symbol, price.String(), source, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s: %w", symbol, err)
	}
	return nil
}

// GetQuote returns the stored quote for a symbol, or (nil, nil) if not found
func (r *Repository) GetQuote(symbol string) (*Quote, error) {
	var quote Quote
	var raw string
	var updatedAtUnix int64

	err := r.db.QueryRow(
		"SELECT symbol, price, source, updated_at FROM prices WHERE symbol = ?", symbol,
	).Scan(&quote.Symbol, &raw, &quote.Source, &updatedAtUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price for %s: %w", symbol, err)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q for %s: %w", raw, symbol, err)
	}
	quote.Price = price
	quote.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	return &quote, nil
}

// AllPrices returns the latest price per symbol
func (r *Repository) AllPrices() (map[string]decimal.Decimal, error) {
	rows, err := r.db.Query("SELECT symbol, price FROM prices")
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]decimal.Decimal)
	for rows.Next() {
		var symbol, raw string
		if err := rows.Scan(&symbol, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price %q for %s: %w", raw, symbol, err)
		}
		prices[symbol] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return prices, nil
}
