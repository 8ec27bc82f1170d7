package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/satdata/tracegas-aggregation/internal/tracegas"
)

// Job is a standing averaging run over a trailing window of days. Each
// tick re-runs the aggregation so the stored result picks up product
// files that arrived since the previous run.
type Job struct {
	Field      string
	Bounds     tracegas.Bounds
	WindowDays int
	Options    tracegas.Options
}

// Scheduler periodically re-runs standing averaging jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *tracegas.Service
	jobs      []Job
	interval  time.Duration
}

// New creates a new Scheduler.
func New(jobs []Job, interval time.Duration, service *tracegas.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		jobs:      jobs,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		log.Println("scheduler: no standing jobs configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running averaging jobs")

		for _, job := range s.jobs {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			s.run(ctx, job)
			cancel()
		}

		log.Println("scheduler: completed averaging jobs")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -job.WindowDays)

	opts := job.Options
	if job.Field != "" {
		opts.MapField = job.Field
	}

	req := tracegas.Request{
		Ranges:  []tracegas.DateRange{{Start: start, End: end}},
		Bounds:  job.Bounds,
		Options: opts,
	}

	if _, err := s.service.Run(ctx, req); err != nil {
		log.Printf("scheduler: averaging failed for %s: %v", job.Field, err)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
