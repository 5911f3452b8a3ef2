package bus

import (
	"testing"

	"github.com/cddevrks/code-run/internal/job"
)

func TestMemoryBusDeliversSubmissions(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	var got []job.Submission
	if _, err := b.SubscribeSubmissions(func(sub job.Submission) {
		got = append(got, sub)
	}); err != nil {
		t.Fatalf("SubscribeSubmissions: %v", err)
	}

	if err := b.PublishSubmission(job.Submission{JobID: "j1", Language: "python"}); err != nil {
		t.Fatalf("PublishSubmission: %v", err)
	}

	if len(got) != 1 || got[0].JobID != "j1" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryBusDeliversEventsToAllSubscribers(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	var a, c int
	b.SubscribeEvents(func(job.Event) { a++ })
	b.SubscribeEvents(func(job.Event) { c++ })

	b.PublishEvent(job.Event{Type: job.EventProgress, JobID: "j1"})
	b.PublishEvent(job.Event{Type: job.EventCompleted, JobID: "j1"})

	if a != 2 || c != 2 {
		t.Errorf("deliveries = %d/%d, want 2/2", a, c)
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	var n int
	cancel, _ := b.SubscribeEvents(func(job.Event) { n++ })

	b.PublishEvent(job.Event{Type: job.EventProgress, JobID: "j1"})
	cancel()
	b.PublishEvent(job.Event{Type: job.EventProgress, JobID: "j1"})

	if n != 1 {
		t.Errorf("deliveries after unsubscribe = %d, want 1", n)
	}
}

func TestMemoryBusNoSubscribers(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	if err := b.PublishEvent(job.Event{Type: job.EventProgress}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
	if err := b.PublishSubmission(job.Submission{JobID: "j1"}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}
