// Package scheduler runs the service's recurring jobs, the price refresh
// and the history prune, on cron schedules with seconds granularity.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps a seconds-granularity cron runner
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a stopped scheduler; register jobs, then call Start
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins running registered jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts scheduling and blocks until running jobs finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job on a six-field cron schedule
// Schedule examples:
//   - "0 */30 9-17 * * 1-5" - price refresh, twice hourly on weekdays
//   - "0 0 3 * * *"         - history prune, daily at 03:00
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

func (s *Scheduler) run(job Job) {
	started := time.Now()
	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration", time.Since(started)).
		Msg("Job completed")
}
