package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists rebalance runs.
// Database: portfolio.db (rebalance_runs table).
// The run payload is a msgpack blob; the columns used for listing and
// filtering are kept alongside it so queries never need to decode blobs.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// EnsureSchema creates the rebalance_runs table if it doesn't exist
func (r *Repository) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rebalance_runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		fund TEXT NOT NULL,
		strategy TEXT NOT NULL,
		used_fallback INTEGER NOT NULL,
		data BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rebalance_runs_created
		ON rebalance_runs (created_at DESC);`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Save stores a run and returns its generated id
func (r *Repository) Save(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	data, err := msgpack.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("failed to encode run: %w", err)
	}

	usedFallback := 0
	if run.UsedFallback {
		usedFallback = 1
	}

	_, err = r.db.Exec(
		"INSERT INTO rebalance_runs (id, created_at, fund, strategy, used_fallback, data) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.CreatedAt.Unix(), run.Fund, run.Strategy, usedFallback, data)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	return run.ID, nil
}

// Get returns a run by id, or (nil, nil) if not found
func (r *Repository) Get(id string) (*Run, error) {
	var run Run
	var createdAtUnix int64
	var usedFallback int
	var data []byte

	err := r.db.QueryRow(
		"SELECT id, created_at, fund, strategy, used_fallback, data FROM rebalance_runs WHERE id = ?", id,
	).Scan(&run.ID, &createdAtUnix, &run.Fund, &run.Strategy, &usedFallback, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	if err := msgpack.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	run.ID = id
	run.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	run.UsedFallback = usedFallback != 0

	return &run, nil
}

// List returns the most recent runs, newest first, without decoding order
// payloads. Limit <= 0 defaults to 50.
func (r *Repository) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		"SELECT id, created_at, fund, strategy, used_fallback FROM rebalance_runs ORDER BY created_at DESC, id LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAtUnix int64
		var usedFallback int
		if err := rows.Scan(&run.ID, &createdAtUnix, &run.Fund, &run.Strategy, &usedFallback); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		run.UsedFallback = usedFallback != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Prune deletes runs older than the cutoff and returns how many were removed
func (r *Repository) Prune(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM rebalance_runs WHERE created_at < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
