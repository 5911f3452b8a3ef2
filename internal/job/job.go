package job

import "time"

// Status represents the lifecycle state of an execution job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the outcome of a finished execution. Immutable once produced;
// exactly one Result (or terminal error) is accepted per job.
type Result struct {
	Output          string `json:"output,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs,omitempty"`
	MemoryBytes     int64  `json:"memoryBytes,omitempty"`
}

// Job is a submitted execution with its current state and, once finished,
// its result. The ID is server-assigned and opaque to clients.
type Job struct {
	ID              string    `json:"id"`
	Language        string    `json:"language"`
	Code            string    `json:"code"`
	Status          Status    `json:"status"`
	Output          string    `json:"output,omitempty"`
	Error           string    `json:"error,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms,omitempty"`
	MemoryBytes     int64     `json:"memory_bytes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Submission is the unit of work handed to a runner.
type Submission struct {
	JobID    string `json:"job_id"`
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin,omitempty"`
}

// EventType distinguishes runner-emitted job events.
type EventType string

const (
	EventProgress  EventType = "jobProgress"
	EventCompleted EventType = "jobCompleted"
	EventFailed    EventType = "jobFailed"
)

// Event is a single report about a job, tagged with the job id so consumers
// can filter events from superseded jobs.
type Event struct {
	Type     EventType `json:"type"`
	JobID    string    `json:"jobId"`
	Status   Status    `json:"status,omitempty"`
	Progress int       `json:"progress,omitempty"`
	Result   *Result   `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Terminal reports whether the event finishes its job.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}
