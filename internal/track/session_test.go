package track

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/language"
)

func TestSessionStartsWithTemplate(t *testing.T) {
	tr := New(&fakeAPI{}, nil, testOptions())
	sess, err := NewSession(tr, language.Builtin(), "python")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if !strings.Contains(sess.Code, "Hello, World!") {
		t.Errorf("buffer = %q, want python template", sess.Code)
	}
}

func TestSessionRejectsUnknownLanguage(t *testing.T) {
	tr := New(&fakeAPI{}, nil, testOptions())
	if _, err := NewSession(tr, language.Builtin(), "cobol"); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestLanguageSwitchResetsBufferAndResults(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-s"),
		status:  alwaysRunning,
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	catalog := language.Builtin()
	sess, err := NewSession(tr, catalog, "python")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	sess.Code = "print('edited')"
	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	events.emit(job.Event{
		Type:   job.EventCompleted,
		JobID:  "job-s",
		Result: &job.Result{Output: "edited", ExecutionTimeMs: 9, MemoryBytes: 1024},
	})
	waitFor(t, func() bool { return tr.Snapshot().Output == "edited" })

	if err := sess.SetLanguage("go"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	if sess.Language != "go" {
		t.Errorf("language = %q, want go", sess.Language)
	}
	if sess.Code != catalog.Template("go") {
		t.Errorf("buffer = %q, want go template", sess.Code)
	}

	snap := tr.Snapshot()
	if snap.Output != "" || snap.Error != "" {
		t.Errorf("results not cleared: output=%q error=%q", snap.Output, snap.Error)
	}
	if snap.ExecutionTimeMs != 0 || snap.MemoryBytes != 0 {
		t.Error("metrics not cleared")
	}
}

func TestLanguageSwitchCancelsActiveTracking(t *testing.T) {
	api := &fakeAPI{
		execute: acceptAs("job-c"),
		status:  alwaysRunning,
	}
	events := &fakeEvents{}
	tr := New(api, events, testOptions())

	sess, err := NewSession(tr, language.Builtin(), "python")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitFor(t, func() bool { return events.subscribeCount() == 1 })

	if err := sess.SetLanguage("ruby"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	// A late event for the abandoned job must not resurrect it.
	events.emit(job.Event{
		Type:   job.EventCompleted,
		JobID:  "job-c",
		Result: &job.Result{Output: "stale"},
	})
	time.Sleep(50 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.Output != "" {
		t.Errorf("output = %q, want empty after language switch", snap.Output)
	}
	if snap.Running {
		t.Error("tracker should be idle after language switch")
	}
}
