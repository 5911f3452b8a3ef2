package server

import (
	"sync"

	"github.com/cddevrks/code-run/internal/job"
)

// LiveJob is the in-memory state of a job that has not yet reached a
// terminal status. Terminal state lives in the store.
type LiveJob struct {
	ID       string
	Status   job.Status
	Progress int
}

// JobRegistry tracks which jobs are currently queued or running.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*LiveJob
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[string]*LiveJob),
	}
}

// Add registers a freshly accepted job as queued.
func (r *JobRegistry) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &LiveJob{ID: id, Status: job.StatusQueued}
}

// Get returns a copy of the live state for a job, if it is still in flight.
func (r *JobRegistry) Get(id string) (LiveJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lj, ok := r.jobs[id]
	if !ok {
		return LiveJob{}, false
	}
	return *lj, true
}

// Apply folds a progress event into the live state. Unknown job ids are
// ignored; a runner restart can replay events for jobs already finished.
func (r *JobRegistry) Apply(ev job.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lj, ok := r.jobs[ev.JobID]
	if !ok {
		return
	}
	if ev.Status != "" {
		lj.Status = ev.Status
	} else {
		lj.Status = job.StatusRunning
	}
	if ev.Progress > 0 {
		lj.Progress = ev.Progress
	}
}

// Remove drops a job from the registry once it reached a terminal status.
func (r *JobRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}
