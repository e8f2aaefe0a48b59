package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// RunPruner deletes stored rebalance runs older than a cutoff
type RunPruner interface {
	Prune(olderThan time.Time) (int64, error)
}

// HistoryPruneJob keeps the rebalance run table from growing unbounded
type HistoryPruneJob struct {
	pruner    RunPruner
	retention time.Duration
	log       zerolog.Logger
}

// NewHistoryPruneJob creates a new history prune job.
// Non-positive retention defaults to 90 days.
func NewHistoryPruneJob(pruner RunPruner, retention time.Duration, log zerolog.Logger) *HistoryPruneJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &HistoryPruneJob{
		pruner:    pruner,
		retention: retention,
		log:       log.With().Str("job", "history_prune").Logger(),
	}
}

// Name returns the job name
func (j *HistoryPruneJob) Name() string {
	return "history_prune"
}

// Run deletes runs past the retention window
func (j *HistoryPruneJob) Run() error {
	cutoff := time.Now().UTC().Add(-j.retention)

	removed, err := j.pruner.Prune(cutoff)
	if err != nil {
		return err
	}

	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned old rebalance runs")
	}
	return nil
}
