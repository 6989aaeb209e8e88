package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Job is a scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job   Job
	every time.Duration
	next  time.Time
}

// Registry holds jobs with their own cadence. A freshly registered job is due
// immediately.
type Registry struct {
	entries []*entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register schedules job every interval. Names double as lock keys and metric
// labels, so they must be unique.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("job is required")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("job %s registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.entries = append(r.entries, &entry{job: job, every: every})
	return nil
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

func (r *Registry) due(now time.Time) []*entry {
	var out []*entry
	for _, e := range r.entries {
		if !now.Before(e.next) {
			out = append(out, e)
		}
	}
	return out
}

// shortest is the smallest registered interval, or zero when empty.
func (r *Registry) shortest() time.Duration {
	var out time.Duration
	for _, e := range r.entries {
		if out == 0 || e.every < out {
			out = e.every
		}
	}
	return out
}
