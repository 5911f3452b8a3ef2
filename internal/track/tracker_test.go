package track

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cddevrks/code-run/internal/job"
)

// fakeAPI implements API with pluggable behavior.
type fakeAPI struct {
	mu          sync.Mutex
	execute     func(req job.ExecuteRequest) (*job.ExecuteResponse, error)
	status      func(jobID string) (*job.StatusResponse, error)
	statusCalls int
}

func (f *fakeAPI) Execute(ctx context.Context, req job.ExecuteRequest) (*job.ExecuteResponse, error) {
	return f.execute(req)
}

func (f *fakeAPI) Status(ctx context.Context, jobID string) (*job.StatusResponse, error) {
	f.mu.Lock()
	f.statusCalls++
	f.mu.Unlock()
	return f.status(jobID)
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

// fakeEvents implements EventSource. Emitted events are broadcast to every
// open subscription, so id filtering is exercised.
type fakeEvents struct {
	mu         sync.Mutex
	chans      []chan job.Event
	subscribes []string
}

func (f *fakeEvents) Subscribe(ctx context.Context, jobID string) (<-chan job.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan job.Event, 16)
	f.chans = append(f.chans, ch)
	f.subscribes = append(f.subscribes, jobID)
	return ch, nil
}

func (f *fakeEvents) emit(ev job.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.chans {
		ch <- ev
	}
}

func (f *fakeEvents) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

func acceptAs(jobID string) func(job.ExecuteRequest) (*job.ExecuteResponse, error) {
	return func(job.ExecuteRequest) (*job.ExecuteResponse, error) {
		return &job.ExecuteResponse{Success: true, JobID: jobID}, nil
	}
}

func alwaysRunning(string) (*job.StatusResponse, error) {
	return &job.StatusResponse{Status: job.StatusRunning}, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func testOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, MaxPollAttempts: 60}
}

func TestDefaults(t *testing.T) {
	tr := New(&fakeAPI{}, nil, Options{})
	if tr.opts.PollInterval != time.Second {
		t.Errorf("poll interval = %v, want 1s", tr.opts.PollInterval)
	}
	if tr.opts.MaxPollAttempts != 60 {
		t.Errorf("max poll attempts = %d, want 60", tr.opts.MaxPollAttempts)
	}
}

func TestPushResultWinsOverPoll(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{
		execute: acceptAs("job-1"),
		status: func(string) (*job.StatusResponse, error) {
			// Held back until the push path has already committed.
			<-gate
			return &job.StatusResponse{
				Status: job.StatusCompleted,
				Result: &job.Result{Output: "from poll"},
			}, nil
		},
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	if _, err := tr.Submit(context.Background(), "print(1)", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	events.emit(job.Event{
		Type:   job.EventCompleted,
		JobID:  "job-1",
		Result: &job.Result{Output: "from push", ExecutionTimeMs: 12, MemoryBytes: 2048},
	})
	waitFor(t, func() bool { return !tr.Snapshot().Running })

	// Now let the in-flight poll answer with a conflicting result; it must
	// be discarded.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.Output != "from push" {
		t.Errorf("output = %q, want %q", snap.Output, "from push")
	}
	if snap.Status != "completed" {
		t.Errorf("status = %q, want completed", snap.Status)
	}
	if snap.ExecutionTimeMs != 12 || snap.MemoryBytes != 2048 {
		t.Errorf("metrics = %d/%d, want 12/2048", snap.ExecutionTimeMs, snap.MemoryBytes)
	}
}

func TestNewSubmissionSupersedesOldJob(t *testing.T) {
	ids := []string{"job-a", "job-b"}
	var submitted int
	api := &fakeAPI{
		status: alwaysRunning,
	}
	api.execute = func(job.ExecuteRequest) (*job.ExecuteResponse, error) {
		id := ids[submitted]
		submitted++
		return &job.ExecuteResponse{Success: true, JobID: id}, nil
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	if _, err := tr.Submit(context.Background(), "sleep(10)", "python"); err != nil {
		t.Fatalf("Submit A: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	if _, err := tr.Submit(context.Background(), "print(2)", "python"); err != nil {
		t.Fatalf("Submit B: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 2 })

	// A terminal event for the superseded job must be a no-op.
	events.emit(job.Event{
		Type:   job.EventCompleted,
		JobID:  "job-a",
		Result: &job.Result{Output: "stale"},
	})
	time.Sleep(50 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.JobID != "job-b" {
		t.Fatalf("active job = %q, want job-b", snap.JobID)
	}
	if !snap.Running {
		t.Error("job-b should still be running")
	}
	if snap.Output != "" {
		t.Errorf("output = %q, want empty", snap.Output)
	}

	// The current job still resolves normally.
	events.emit(job.Event{
		Type:   job.EventCompleted,
		JobID:  "job-b",
		Result: &job.Result{Output: "fresh"},
	})
	waitFor(t, func() bool { return !tr.Snapshot().Running })
	if got := tr.Snapshot().Output; got != "fresh" {
		t.Errorf("output = %q, want fresh", got)
	}
}

func TestPollCeilingReportsTimeout(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-slow"),
		status:  alwaysRunning,
	}
	opts := Options{PollInterval: time.Millisecond, MaxPollAttempts: 5}
	tr := New(api, nil, opts)

	if _, err := tr.Submit(context.Background(), "while True: pass", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return !tr.Snapshot().Running })

	snap := tr.Snapshot()
	if snap.Status != "timeout" {
		t.Errorf("status = %q, want timeout", snap.Status)
	}
	if !strings.Contains(snap.Error, "timed out") {
		t.Errorf("error = %q, want timeout message", snap.Error)
	}
	if got := api.calls(); got != 5 {
		t.Errorf("status calls = %d, want exactly 5", got)
	}
}

func TestRejectedSubmissionStartsNoTracking(t *testing.T) {
	api := &fakeAPI{
		execute: func(job.ExecuteRequest) (*job.ExecuteResponse, error) {
			return &job.ExecuteResponse{Success: false, Error: "bad language"}, nil
		},
		status: alwaysRunning,
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	_, err := tr.Submit(context.Background(), "x", "cobol")
	if err == nil {
		t.Fatal("expected error from rejected submission")
	}
	if err.Error() != "bad language" {
		t.Errorf("error = %q, want %q", err.Error(), "bad language")
	}

	time.Sleep(30 * time.Millisecond)
	if events.subscribeCount() != 0 {
		t.Error("rejected submission must not subscribe")
	}
	if api.calls() != 0 {
		t.Error("rejected submission must not poll")
	}

	snap := tr.Snapshot()
	if snap.Error != "bad language" {
		t.Errorf("error = %q, want bad language", snap.Error)
	}
	if snap.Running {
		t.Error("tracker should not be running")
	}
}

func TestProgressUpdatesOnlyStatusLine(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-p"),
		status:  alwaysRunning,
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	if _, err := tr.Submit(context.Background(), "print(3)", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	events.emit(job.Event{Type: job.EventProgress, JobID: "job-p", Status: job.StatusRunning, Progress: 40})
	waitFor(t, func() bool { return tr.Snapshot().Status == "running (40%)" })

	snap := tr.Snapshot()
	if snap.Output != "" || snap.Error != "" {
		t.Errorf("progress touched result fields: output=%q error=%q", snap.Output, snap.Error)
	}
	if snap.ExecutionTimeMs != 0 || snap.MemoryBytes != 0 {
		t.Error("progress touched metrics")
	}
	if !snap.Running {
		t.Error("job should still be running")
	}
}

func TestPollPathResolvesWithoutPush(t *testing.T) {
	var n int
	var mu sync.Mutex
	api := &fakeAPI{
		execute: acceptAs("job-poll"),
	}
	api.status = func(string) (*job.StatusResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n < 3 {
			return &job.StatusResponse{Status: job.StatusRunning, Progress: n * 20}, nil
		}
		return &job.StatusResponse{
			Status: job.StatusCompleted,
			Result: &job.Result{Output: "done", ExecutionTimeMs: 7},
		}, nil
	}
	tr := New(api, nil, testOptions())

	if _, err := tr.Submit(context.Background(), "print(4)", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return !tr.Snapshot().Running })

	snap := tr.Snapshot()
	if snap.Output != "done" {
		t.Errorf("output = %q, want done", snap.Output)
	}
	if snap.ExecutionTimeMs != 7 {
		t.Errorf("execution time = %d, want 7", snap.ExecutionTimeMs)
	}
}

func TestPollTransportErrorIsTerminal(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-err"),
		status: func(string) (*job.StatusResponse, error) {
			return nil, context.DeadlineExceeded
		},
	}
	tr := New(api, nil, testOptions())

	if _, err := tr.Submit(context.Background(), "print(5)", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return !tr.Snapshot().Running })

	snap := tr.Snapshot()
	if snap.Status != "error" {
		t.Errorf("status = %q, want error", snap.Status)
	}
	if !strings.Contains(snap.Error, "checking status") {
		t.Errorf("error = %q, want transport error message", snap.Error)
	}
	if got := api.calls(); got != 1 {
		t.Errorf("status calls = %d, want 1 (no retry)", got)
	}
}

func TestJobFailureCarriesServerMessage(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-f"),
		status:  alwaysRunning,
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	if _, err := tr.Submit(context.Background(), "1/0", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	events.emit(job.Event{
		Type:   job.EventFailed,
		JobID:  "job-f",
		Error:  "ZeroDivisionError: division by zero",
		Result: &job.Result{ExecutionTimeMs: 3},
	})
	waitFor(t, func() bool { return !tr.Snapshot().Running })

	snap := tr.Snapshot()
	if snap.Status != "failed" {
		t.Errorf("status = %q, want failed", snap.Status)
	}
	if snap.Error != "ZeroDivisionError: division by zero" {
		t.Errorf("error = %q", snap.Error)
	}
	if snap.ExecutionTimeMs != 3 {
		t.Errorf("execution time = %d, want 3", snap.ExecutionTimeMs)
	}
}

func TestSubmitTransportError(t *testing.T) {
	api := &fakeAPI{
		execute: func(job.ExecuteRequest) (*job.ExecuteResponse, error) {
			return nil, context.DeadlineExceeded
		},
	}
	tr := New(api, &fakeEvents{}, testOptions())

	if _, err := tr.Submit(context.Background(), "x", "python"); err == nil {
		t.Fatal("expected error")
	}
	snap := tr.Snapshot()
	if !strings.Contains(snap.Error, "submitting") {
		t.Errorf("error = %q, want submit error", snap.Error)
	}
	if snap.Running {
		t.Error("tracker should not be running")
	}
}

func TestOnUpdateObservesTerminalState(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-u"),
		status:  alwaysRunning,
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	var mu sync.Mutex
	var last Snapshot
	tr.OnUpdate = func(s Snapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
	}

	if _, err := tr.Submit(context.Background(), "print(6)", "python"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	events.emit(job.Event{Type: job.EventCompleted, JobID: "job-u", Result: &job.Result{Output: "ok"}})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !last.Running && last.Output == "ok"
	})
}
