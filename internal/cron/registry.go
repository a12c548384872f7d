package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is a unit of scheduled work. Name must be stable: it labels metrics
// and is the handle for one-off runs.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in the order they were wired.
type Registry struct {
	jobs []Job
}

// NewRegistry skips nil jobs and panics on a repeated name.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, taken := r.Lookup(job.Name()); taken {
		panic(fmt.Sprintf("cron: job %q registered twice", job.Name()))
	}
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Lookup(name string) (Job, bool) {
	i := slices.IndexFunc(r.jobs, func(j Job) bool { return j.Name() == name })
	if i < 0 {
		return nil, false
	}
	return r.jobs[i], true
}

// Jobs returns a copy; callers may reorder it freely.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
