package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/language"
	"github.com/cddevrks/code-run/internal/sandbox"
)

// maxOutputBytes caps stdout/stderr carried in a result.
const maxOutputBytes = 64 * 1024

// EmitFunc receives every event the pool produces for a job.
type EmitFunc func(ev job.Event)

// Pool executes submissions on a fixed number of workers and reports
// progress and outcomes through the emit callback.
type Pool struct {
	sb      sandbox.Sandbox
	catalog *language.Catalog
	emit    EmitFunc

	queue  chan job.Submission
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a pool with the given number of workers. The workers start
// immediately and drain submissions until Close is called.
func NewPool(sb sandbox.Sandbox, catalog *language.Catalog, workers int, emit EmitFunc) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		sb:      sb,
		catalog: catalog,
		emit:    emit,
		queue:   make(chan job.Submission, 64),
		cancel:  cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(ctx)
	}
	return p
}

// Submit enqueues a submission for execution.
func (p *Pool) Submit(sub job.Submission) error {
	select {
	case p.queue <- sub:
		return nil
	default:
		return fmt.Errorf("execution queue full")
	}
}

// Close stops the workers. In-flight executions are cancelled.
func (p *Pool) Close() {
	p.cancel()
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for sub := range p.queue {
		if ctx.Err() != nil {
			return
		}
		p.run(ctx, sub)
	}
}

// run executes one submission and emits its lifecycle events.
func (p *Pool) run(ctx context.Context, sub job.Submission) {
	p.emit(job.Event{Type: job.EventProgress, JobID: sub.JobID, Status: job.StatusRunning, Progress: 10})

	def, ok := p.catalog.Get(sub.Language)
	if !ok {
		p.emit(job.Event{Type: job.EventFailed, JobID: sub.JobID, Error: fmt.Sprintf("unsupported language %q", sub.Language)})
		return
	}

	res, err := p.sb.Exec(ctx, sandbox.ExecOpts{
		Image:   def.Image,
		Command: def.Command,
		Code:    sub.Code,
		Stdin:   sub.Stdin,
	})
	if err != nil {
		log.Printf("runner: job %s: %v", sub.JobID, err)
		p.emit(job.Event{Type: job.EventFailed, JobID: sub.JobID, Error: err.Error()})
		return
	}

	result := &job.Result{
		Output:          truncateOutput(res.Stdout),
		ExecutionTimeMs: res.Duration.Milliseconds(),
		MemoryBytes:     res.MaxRSSBytes,
	}

	if res.ExitCode != 0 {
		// The submitted code failed, not the system; stderr is the message.
		msg := strings.TrimSpace(truncateOutput(res.Stderr))
		if msg == "" {
			msg = fmt.Sprintf("exited with code %d", res.ExitCode)
		}
		result.Error = msg
		p.emit(job.Event{Type: job.EventFailed, JobID: sub.JobID, Error: msg, Result: result})
		return
	}

	p.emit(job.Event{Type: job.EventCompleted, JobID: sub.JobID, Result: result})
}

func truncateOutput(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes] + "\n... (output truncated)"
	}
	return s
}
