package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Periodic jobs run at most once per Every() instead of on every cycle.
type Periodic interface {
	Every() time.Duration
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Registry keeps jobs in registration order, keyed by name.
type Registry struct {
	jobs  []Job
	index map[string]int
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{index: map[string]int{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds job and reports whether it was accepted. Nil jobs and names that are
// already taken are rejected.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if r.index == nil {
		r.index = map[string]int{}
	}
	if _, taken := r.index[job.Name()]; taken {
		return false
	}
	r.index[job.Name()] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return true
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Only returns a registry narrowed to the named jobs.
func (r *Registry) Only(names ...string) (*Registry, error) {
	narrowed := NewRegistry()
	for _, name := range names {
		pos, ok := r.index[name]
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
		narrowed.Register(r.jobs[pos])
	}
	return narrowed, nil
}
