// The runner binary executes submissions published on the NATS bus and
// reports job events back. Run any number of them against one broker; the
// queue group splits the work.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cddevrks/code-run/internal/bus"
	"github.com/cddevrks/code-run/internal/config"
	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/language"
	"github.com/cddevrks/code-run/internal/runner"
	"github.com/cddevrks/code-run/internal/sandbox"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Bus.URL == "" {
		return fmt.Errorf("bus.url must be set to run an external runner")
	}

	catalog := language.Builtin()
	if cfg.LanguagesFile != "" {
		catalog, err = language.Load(cfg.LanguagesFile)
		if err != nil {
			return fmt.Errorf("loading languages: %w", err)
		}
	}

	b, err := bus.ConnectNATS(cfg.Bus.URL)
	if err != nil {
		return fmt.Errorf("connecting bus: %w", err)
	}
	defer b.Close()

	policy := sandbox.Policy{
		MaxMemory:  cfg.Runner.MaxMemory,
		MaxTimeout: cfg.Runner.Timeout,
		Network:    cfg.Runner.Network,
	}.WithImages(catalog.Images())

	pool := runner.NewPool(sandbox.NewDockerSandbox(policy), catalog, cfg.Runner.Workers, func(ev job.Event) {
		if err := b.PublishEvent(ev); err != nil {
			log.Printf("runner: publishing event for job %s: %v", ev.JobID, err)
		}
	})
	defer pool.Close()

	unsub, err := b.SubscribeSubmissions(func(sub job.Submission) {
		if err := pool.Submit(sub); err != nil {
			log.Printf("runner: rejecting job %s: %v", sub.JobID, err)
			b.PublishEvent(job.Event{Type: job.EventFailed, JobID: sub.JobID, Error: err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing submissions: %w", err)
	}
	defer unsub()

	log.Printf("runner started: %d workers, bus %s", cfg.Runner.Workers, cfg.Bus.URL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("runner shutting down...")
	return nil
}
