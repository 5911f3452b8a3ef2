package bus

import (
	"sync"

	"github.com/cddevrks/code-run/internal/job"
)

// Bus carries submissions from the API server to runners and job events
// back. The server runs with the in-memory bus by default; the NATS bus
// connects external runner processes.
type Bus interface {
	PublishSubmission(sub job.Submission) error
	SubscribeSubmissions(handler func(job.Submission)) (func(), error)

	PublishEvent(ev job.Event) error
	SubscribeEvents(handler func(job.Event)) (func(), error)

	Close()
}

// Memory is an in-process Bus. Delivery is synchronous in publish order.
type Memory struct {
	mu         sync.RWMutex
	subHandler []func(job.Submission)
	evHandler  []func(job.Event)
}

// NewMemory creates an in-process bus.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) PublishSubmission(sub job.Submission) error {
	m.mu.RLock()
	handlers := append(([]func(job.Submission))(nil), m.subHandler...)
	m.mu.RUnlock()
	for _, h := range handlers {
		h(sub)
	}
	return nil
}

func (m *Memory) SubscribeSubmissions(handler func(job.Submission)) (func(), error) {
	m.mu.Lock()
	m.subHandler = append(m.subHandler, handler)
	idx := len(m.subHandler) - 1
	m.mu.Unlock()
	return func() { m.removeSubmissionHandler(idx) }, nil
}

func (m *Memory) PublishEvent(ev job.Event) error {
	m.mu.RLock()
	handlers := append(([]func(job.Event))(nil), m.evHandler...)
	m.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (m *Memory) SubscribeEvents(handler func(job.Event)) (func(), error) {
	m.mu.Lock()
	m.evHandler = append(m.evHandler, handler)
	idx := len(m.evHandler) - 1
	m.mu.Unlock()
	return func() { m.removeEventHandler(idx) }, nil
}

func (m *Memory) removeSubmissionHandler(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < len(m.subHandler) {
		m.subHandler[idx] = func(job.Submission) {}
	}
}

func (m *Memory) removeEventHandler(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < len(m.evHandler) {
		m.evHandler[idx] = func(job.Event) {}
	}
}

func (m *Memory) Close() {}
