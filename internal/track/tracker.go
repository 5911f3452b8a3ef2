// Package track implements the client side of asynchronous code execution:
// submit a job, then reconcile the push channel and the poll loop into a
// single result.
package track

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cddevrks/code-run/internal/job"
)

// API is the HTTP surface of the execution service.
type API interface {
	Execute(ctx context.Context, req job.ExecuteRequest) (*job.ExecuteResponse, error)
	Status(ctx context.Context, jobID string) (*job.StatusResponse, error)
}

// EventSource is the push channel. Subscribe returns a stream of events for
// the given job id; the stream closes when ctx is cancelled or the
// connection drops.
type EventSource interface {
	Subscribe(ctx context.Context, jobID string) (<-chan job.Event, error)
}

// Options tune the poll path.
type Options struct {
	PollInterval    time.Duration // default 1s
	MaxPollAttempts int           // default 60
}

// Snapshot is the read-model the presentation layer renders. It is replaced
// wholesale on submission and frozen once a terminal outcome is committed.
type Snapshot struct {
	JobID           string
	Status          string // human-readable status line
	Running         bool
	Output          string
	Error           string
	ExecutionTimeMs int64
	MemoryBytes     int64
}

// activeJob is the single authoritative record for the job being tracked.
// Both delivery paths write through guarded commits against it.
type activeJob struct {
	id       string
	resolved bool
	cancel   context.CancelFunc
}

// Tracker owns the lifecycle of at most one in-flight job. The push
// subscription and the poll loop run concurrently from the moment a job is
// accepted; the first terminal report wins and the other path is cancelled.
// Reports whose job id does not match the active job are dropped, which
// covers late events from a superseded submission.
type Tracker struct {
	api    API
	events EventSource
	opts   Options

	// OnUpdate, if set before the first Submit, is called with a copy of
	// the snapshot after every state change.
	OnUpdate func(Snapshot)

	mu     sync.Mutex
	active *activeJob
	snap   Snapshot
}

// New creates a Tracker. events may be nil, in which case only the poll
// path runs.
func New(api API, events EventSource, opts Options) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = 60
	}
	return &Tracker{api: api, events: events, opts: opts}
}

// Submit sends code for execution. On acceptance it records the returned
// job id as the active job, clears any prior output, error and metrics, and
// starts both delivery paths. Any previously tracked job is superseded: its
// tracking context is cancelled and its late events become no-ops. On
// rejection ("success": false) or transport failure the error is surfaced
// and no tracking starts.
func (t *Tracker) Submit(ctx context.Context, code, language string) (string, error) {
	t.mu.Lock()
	if t.active != nil {
		t.active.cancel()
		t.active = nil
	}
	t.snap = Snapshot{Status: "submitting", Running: true}
	t.mu.Unlock()
	t.notify()

	resp, err := t.api.Execute(ctx, job.ExecuteRequest{Code: code, Language: language})
	if err != nil {
		t.fail("submitting: " + err.Error())
		return "", fmt.Errorf("submitting: %w", err)
	}
	if !resp.Success || resp.JobID == "" {
		msg := resp.Error
		if msg == "" {
			msg = "submission rejected"
		}
		t.fail(msg)
		return "", errors.New(msg)
	}

	// Tracking outlives the submit call's context; cancellation is owned
	// by the tracker (supersede, Reset, or first terminal commit).
	runCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.active = &activeJob{id: resp.JobID, cancel: cancel}
	t.snap = Snapshot{JobID: resp.JobID, Status: "submitted", Running: true}
	t.mu.Unlock()
	t.notify()

	if t.events != nil {
		go t.subscribeLoop(runCtx, resp.JobID)
	}
	go t.pollLoop(runCtx, resp.JobID)

	return resp.JobID, nil
}

// Reset cancels any active tracking and clears the snapshot.
func (t *Tracker) Reset() {
	t.mu.Lock()
	if t.active != nil {
		t.active.cancel()
		t.active = nil
	}
	t.snap = Snapshot{}
	t.mu.Unlock()
	t.notify()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// fail records a submission-stage error. No job is being tracked.
func (t *Tracker) fail(msg string) {
	t.mu.Lock()
	t.snap = Snapshot{Status: "error", Error: msg}
	t.mu.Unlock()
	t.notify()
}

// commit finalizes the active job. It is the only place a terminal outcome
// is written; the id and resolved guards make it at-most-once per job, so
// whichever path reports first wins and the loser's report is discarded.
// Returns false when the report was stale.
func (t *Tracker) commit(id, status string, res *job.Result, errMsg string) bool {
	t.mu.Lock()
	a := t.active
	if a == nil || a.id != id || a.resolved {
		t.mu.Unlock()
		return false
	}
	a.resolved = true
	a.cancel() // stop the other delivery path

	t.snap.Running = false
	t.snap.Status = status
	if res != nil {
		t.snap.Output = res.Output
		t.snap.ExecutionTimeMs = res.ExecutionTimeMs
		t.snap.MemoryBytes = res.MemoryBytes
		if res.Error != "" {
			t.snap.Error = res.Error
		}
	}
	if errMsg != "" {
		t.snap.Error = errMsg
	}
	t.mu.Unlock()
	t.notify()
	return true
}

// progress updates the status line for a non-terminal report. Result fields
// are never touched here.
func (t *Tracker) progress(id string, phase job.Status, pct int) {
	t.mu.Lock()
	a := t.active
	if a == nil || a.id != id || a.resolved {
		t.mu.Unlock()
		return
	}
	if pct > 0 {
		t.snap.Status = fmt.Sprintf("%s (%d%%)", phase, pct)
	} else {
		t.snap.Status = string(phase)
	}
	t.mu.Unlock()
	t.notify()
}

// pollLoop asks the status endpoint once per interval up to the attempt
// ceiling. It stops on terminal state, transport error, cancellation, or —
// after the ceiling — commits a timeout.
func (t *Tracker) pollLoop(ctx context.Context, id string) {
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < t.opts.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		resp, err := t.api.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.commit(id, "error", nil, "checking status: "+err.Error())
			return
		}

		switch resp.Status {
		case job.StatusCompleted:
			t.commit(id, "completed", resp.Result, "")
			return
		case job.StatusFailed:
			t.commit(id, "failed", resp.Result, failureMessage(resp.Error, resp.Result))
			return
		default:
			t.progress(id, resp.Status, resp.Progress)
		}
	}

	t.commit(id, "timeout", nil, "timed out waiting for result")
}

// subscribeLoop consumes the push channel for the job. A subscribe failure
// is not fatal: the poll path still covers the job.
func (t *Tracker) subscribeLoop(ctx context.Context, id string) {
	ch, err := t.events.Subscribe(ctx, id)
	if err != nil {
		log.Printf("track: push subscribe for job %s: %v", id, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.JobID != id {
				continue
			}
			switch ev.Type {
			case job.EventProgress:
				phase := ev.Status
				if phase == "" {
					phase = job.StatusRunning
				}
				t.progress(id, phase, ev.Progress)
			case job.EventCompleted:
				t.commit(id, "completed", ev.Result, "")
				return
			case job.EventFailed:
				t.commit(id, "failed", ev.Result, failureMessage(ev.Error, ev.Result))
				return
			}
		}
	}
}

func failureMessage(errMsg string, res *job.Result) string {
	if errMsg != "" {
		return errMsg
	}
	if res != nil && res.Error != "" {
		return res.Error
	}
	return "execution failed"
}

func (t *Tracker) notify() {
	if t.OnUpdate == nil {
		return
	}
	t.OnUpdate(t.Snapshot())
}
