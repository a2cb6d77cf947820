package cron

import (
	"context"
	"time"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule decides which jobs are due on a given tick. A job registered with
// a zero cadence runs on every tick; others run at most once per cadence.
type Schedule struct {
	entries []*entry
}

type entry struct {
	job   Job
	every time.Duration
	next  time.Time
}

// NewSchedule registers jobs that run on every tick.
func NewSchedule(jobs ...Job) *Schedule {
	s := &Schedule{}
	for _, job := range jobs {
		s.Every(job, 0)
	}
	return s
}

// Every registers job with the given cadence. Nil jobs are ignored.
func (s *Schedule) Every(job Job, every time.Duration) *Schedule {
	if job != nil {
		s.entries = append(s.entries, &entry{job: job, every: every})
	}
	return s
}

// Due returns the jobs to run at now in registration order and books their
// next run.
func (s *Schedule) Due(now time.Time) []Job {
	var due []Job
	for _, e := range s.entries {
		if now.Before(e.next) {
			continue
		}
		due = append(due, e.job)
		if e.every > 0 {
			e.next = now.Add(e.every)
		}
	}
	return due
}

func (s *Schedule) Len() int { return len(s.entries) }
