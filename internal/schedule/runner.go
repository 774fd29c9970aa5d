package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/lemara98/post-automation/internal/logger"
)

// Job is a named function fired on Spec.
type Job struct {
	Name string
	Spec *Spec
	Run  func(ctx context.Context) error
}

// Scheduler fires jobs one at a time. A firing missed while another job was
// running is skipped, not replayed.
type Scheduler struct {
	jobs  []Job
	loc   *time.Location
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New builds a scheduler evaluating specs in loc (UTC when nil).
func New(loc *time.Location, jobs ...Job) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("schedule: no jobs")
	}
	for _, j := range jobs {
		if j.Spec == nil || j.Run == nil {
			return nil, fmt.Errorf("schedule: job %q needs a spec and a func", j.Name)
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{jobs: jobs, loc: loc, now: time.Now, after: time.After}, nil
}

// NextRuns reports the next firing of every job after from.
func (s *Scheduler) NextRuns(from time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for _, j := range s.jobs {
		out[j.Name] = j.Spec.Next(from.In(s.loc))
	}
	return out
}

// Run blocks until ctx is done. Job errors are logged and do not stop the
// loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.now().In(s.loc)
		var due []Job
		var at time.Time
		for _, j := range s.jobs {
			next := j.Spec.Next(now)
			if next.IsZero() {
				continue
			}
			switch {
			case at.IsZero() || next.Before(at):
				at, due = next, []Job{j}
			case next.Equal(at):
				due = append(due, j)
			}
		}
		if at.IsZero() {
			return fmt.Errorf("schedule: no job can fire again")
		}
		logger.Info("next scheduled run", "at", at, "jobs", len(due), "first", due[0].Name)

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(at.Sub(now)):
		}

		for _, j := range due {
			if ctx.Err() != nil {
				return nil
			}
			start := s.now()
			logger.Info("scheduled job starting", "job", j.Name, "spec", j.Spec.String())
			if err := j.Run(ctx); err != nil {
				logger.Error("scheduled job failed", "job", j.Name, "error", err, "elapsed", s.now().Sub(start))
				continue
			}
			logger.Info("scheduled job finished", "job", j.Name, "elapsed", s.now().Sub(start))
		}
	}
}
