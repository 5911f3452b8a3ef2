package storage

import (
	"context"

	"github.com/cddevrks/code-run/internal/job"
)

// JobListOptions controls filtering and pagination for ListJobs.
type JobListOptions struct {
	Status job.Status
	Limit  int
	Offset int
}

// Store is the persistence interface for job history.
type Store interface {
	// CreateJob inserts a new job. The ID field must be set by the caller.
	CreateJob(ctx context.Context, j *job.Job) error

	// GetJob returns a job by ID or ID prefix.
	GetJob(ctx context.Context, id string) (*job.Job, error)

	// ListJobs returns jobs ordered by updated_at descending.
	ListJobs(ctx context.Context, opts JobListOptions) ([]job.Job, error)

	// UpdateJob updates the mutable fields (status, output, error, metrics).
	UpdateJob(ctx context.Context, j *job.Job) error

	// DeleteJob removes a job.
	DeleteJob(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
