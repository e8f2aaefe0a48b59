package allocation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles fund allocation database operations.
// Database: config.db (funds and fund_weights tables).
// Weights are stored as TEXT so decimal values round-trip exactly.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// EnsureSchema creates the fund tables if they don't exist
func (r *Repository) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS funds (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS fund_weights (
		fund_id TEXT NOT NULL REFERENCES funds(id) ON DELETE CASCADE,
		symbol TEXT NOT NULL,
		weight TEXT NOT NULL,
		PRIMARY KEY (fund_id, symbol)
	);`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create fund schema: %w", err)
	}
	return nil
}

// Upsert writes a fund and its full weight table in a single transaction,
// replacing any existing weights for the fund.
func (r *Repository) Upsert(fund Fund) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin fund upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO funds (id, label, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET label = excluded.label, updated_at = excluded.updated_at`,
		fund.ID, fund.Label, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert fund %s: %w", fund.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM fund_weights WHERE fund_id = ?", fund.ID); err != nil {
		return fmt.Errorf("failed to clear weights for fund %s: %w", fund.ID, err)
	}

	for symbol, weight := range fund.Weights {
		_, err := tx.Exec(
			"INSERT INTO fund_weights (fund_id, symbol, weight) VALUES (?, ?, ?)",
			fund.ID, symbol, weight.String())
		if err != nil {
			return fmt.Errorf("failed to insert weight %s for fund %s: %w", symbol, fund.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fund upsert: %w", err)
	}
	return nil
}

// Get returns a fund with its weight table, or (nil, nil) if not found
func (r *Repository) Get(fundID string) (*Fund, error) {
	var fund Fund
	var updatedAtUnix int64

	err := r.db.QueryRow(
		"SELECT id, label, updated_at FROM funds WHERE id = ?", fundID,
	).Scan(&fund.ID, &fund.Label, &updatedAtUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fund %s: %w", fundID, err)
	}
	fund.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	weights, err := r.getWeights(fundID)
	if err != nil {
		return nil, err
	}
	fund.Weights = weights

	return &fund, nil
}

// List returns all funds with their weight tables, ordered by id
func (r *Repository) List() ([]Fund, error) {
	rows, err := r.db.Query("SELECT id, label, updated_at FROM funds ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var funds []Fund
	for rows.Next() {
		var fund Fund
		var updatedAtUnix int64
		if err := rows.Scan(&fund.ID, &fund.Label, &updatedAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		fund.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
		funds = append(funds, fund)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds: %w", err)
	}

	for i := range funds {
		weights, err := r.getWeights(funds[i].ID)
		if err != nil {
			return nil, err
		}
		funds[i].Weights = weights
	}

	return funds, nil
}

// Count returns the number of stored funds
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM funds").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count funds: %w", err)
	}
	return count, nil
}

func (r *Repository) getWeights(fundID string) (map[string]decimal.Decimal, error) {
	rows, err := r.db.Query("SELECT symbol, weight FROM fund_weights WHERE fund_id = ?", fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weights for fund %s: %w", fundID, err)
	}
	defer rows.Close()

	weights := make(map[string]decimal.Decimal)
	for rows.Next() {
		var symbol, raw string
		if err := rows.Scan(&symbol, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan fund weight: %w", err)
		}
		weight, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored weight %q for %s: %w", raw, symbol, err)
		}
		weights[symbol] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund weights: %w", err)
	}

	return weights, nil
}
