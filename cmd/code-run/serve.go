package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cddevrks/code-run/internal/bus"
	"github.com/cddevrks/code-run/internal/config"
	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/language"
	"github.com/cddevrks/code-run/internal/runner"
	"github.com/cddevrks/code-run/internal/sandbox"
	"github.com/cddevrks/code-run/internal/server"
	"github.com/cddevrks/code-run/internal/storage/sqlite"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the code-run server",
	Long: `Start the code-run HTTP server with REST API and WebSocket push channel.

With no bus configured, jobs execute in-process. With bus.url pointing at a
NATS broker, submissions are published for external runners (see the runner
binary).

Examples:
  code-run serve
  code-run serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// busDispatcher publishes accepted submissions for external runners.
type busDispatcher struct {
	bus bus.Bus
}

func (d busDispatcher) Submit(sub job.Submission) error {
	return d.bus.PublishSubmission(sub)
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Language catalog
	catalog := language.Builtin()
	if cfg.LanguagesFile != "" {
		catalog, err = language.Load(cfg.LanguagesFile)
		if err != nil {
			return fmt.Errorf("loading languages: %w", err)
		}
	}

	// Open storage
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	var srv *server.Server

	if cfg.Bus.URL != "" {
		// Distributed mode: submissions go out over NATS, events come back.
		b, err := bus.ConnectNATS(cfg.Bus.URL)
		if err != nil {
			return fmt.Errorf("connecting bus: %w", err)
		}
		defer b.Close()

		srv = server.New(cfg, store, catalog, busDispatcher{bus: b})
		unsub, err := b.SubscribeEvents(srv.HandleEvent)
		if err != nil {
			return fmt.Errorf("subscribing events: %w", err)
		}
		defer unsub()
		log.Printf("Runner: external via NATS at %s", cfg.Bus.URL)
	} else {
		// Local mode: an in-process worker pool executes jobs.
		policy := sandbox.Policy{
			MaxMemory:  cfg.Runner.MaxMemory,
			MaxTimeout: cfg.Runner.Timeout,
			Network:    cfg.Runner.Network,
		}.WithImages(catalog.Images())

		var pool *runner.Pool
		srv = server.New(cfg, store, catalog, server.DispatcherFunc(func(sub job.Submission) error {
			return pool.Submit(sub)
		}))
		pool = runner.NewPool(sandbox.NewDockerSandbox(policy), catalog, cfg.Runner.Workers, srv.HandleEvent)
		defer pool.Close()
		log.Printf("Runner: in-process pool, %d workers", cfg.Runner.Workers)
	}

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	return srv.Start(port)
}
