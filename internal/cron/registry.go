package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work. Names must be unique within a registry
// because they label metrics and logs.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

var ErrDuplicateJob = errors.New("cron job already registered")

// Registry keeps jobs in registration order.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs in order and fails on the first invalid one.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("cron job is nil")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return errors.New("cron job name is empty")
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
