package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cddevrks/code-run/internal/job"
)

const (
	subjectSubmissions = "codrun.jobs.submitted"
	subjectEvents      = "codrun.jobs.events"

	// Queue group so multiple runner processes split the submission stream.
	runnerQueue = "runners"
)

// NATS is a Bus backed by a NATS connection, used to run the sandbox
// workers as separate processes from the API server.
type NATS struct {
	nc *nats.Conn
}

// ConnectNATS dials the broker and returns a NATS bus.
func ConnectNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	return &NATS{nc: nc}, nil
}

func (b *NATS) PublishSubmission(sub job.Submission) error {
	return b.publishJSON(subjectSubmissions, sub)
}

func (b *NATS) SubscribeSubmissions(handler func(job.Submission)) (func(), error) {
	s, err := b.nc.QueueSubscribe(subjectSubmissions, runnerQueue, func(msg *nats.Msg) {
		var sub job.Submission
		if err := json.Unmarshal(msg.Data, &sub); err != nil {
			log.Printf("bus: bad submission payload: %v", err)
			return
		}
		handler(sub)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing %s: %w", subjectSubmissions, err)
	}
	return func() { _ = s.Unsubscribe() }, nil
}

func (b *NATS) PublishEvent(ev job.Event) error {
	return b.publishJSON(subjectEvents, ev)
}

func (b *NATS) SubscribeEvents(handler func(job.Event)) (func(), error) {
	s, err := b.nc.Subscribe(subjectEvents, func(msg *nats.Msg) {
		var ev job.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("bus: bad event payload: %v", err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing %s: %w", subjectEvents, err)
	}
	return func() { _ = s.Unsubscribe() }, nil
}

func (b *NATS) publishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.nc.Publish(subject, data)
}

func (b *NATS) Close() {
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
