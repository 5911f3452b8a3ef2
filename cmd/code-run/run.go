package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cddevrks/code-run/internal/config"
	"github.com/cddevrks/code-run/internal/track"
)

var (
	stdinFlag string
	waitFlag  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Submit a source file and wait for the result",
	Long: `Submit a source file for sandboxed execution and track it to completion.
Use "-" to read the source from stdin.

Examples:
  code-run run hello.py --language python
  cat main.go | code-run run - --language go`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&stdinFlag, "stdin", "", "Standard input to provide to the program")
	runCmd.Flags().DurationVar(&waitFlag, "wait", 2*time.Minute, "Maximum time to wait for a result")
	rootCmd.AddCommand(runCmd)
}

func newTracker(cfg *config.Config) *track.Tracker {
	base := cfg.Server.BaseURL
	if serverFlag != "" {
		base = serverFlag
	}
	return track.New(
		track.NewHTTPAPI(base),
		track.NewWSEvents(base),
		track.Options{
			PollInterval:    cfg.Client.PollInterval,
			MaxPollAttempts: cfg.Client.MaxPollAttempts,
		},
	)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var code []byte
	if args[0] == "-" {
		code, err = io.ReadAll(os.Stdin)
	} else {
		code, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	t := newTracker(cfg)

	done := make(chan track.Snapshot, 1)
	t.OnUpdate = func(snap track.Snapshot) {
		if snap.Running {
			fmt.Printf("\r\033[K%s", snap.Status)
			return
		}
		select {
		case done <- snap:
		default:
		}
	}

	jobID, err := t.Submit(cmd.Context(), string(code), languageFlag)
	if err != nil {
		return err
	}
	fmt.Printf("job %s\n", jobID)

	ctx, cancel := context.WithTimeout(cmd.Context(), waitFlag)
	defer cancel()

	var snap track.Snapshot
	select {
	case snap = <-done:
	case <-ctx.Done():
		return fmt.Errorf("gave up waiting for job %s", jobID)
	}

	printResult(snap)
	if snap.Error != "" {
		os.Exit(1)
	}
	return nil
}

func printResult(snap track.Snapshot) {
	fmt.Printf("\r\033[K")
	if snap.Output != "" {
		fmt.Print(snap.Output)
		if snap.Output[len(snap.Output)-1] != '\n' {
			fmt.Println()
		}
	}
	if snap.Error != "" {
		fmt.Printf("\033[31m%s\033[0m\n", snap.Error)
	}
	if snap.ExecutionTimeMs > 0 || snap.MemoryBytes > 0 {
		fmt.Printf("\033[90m%dms, %s\033[0m\n", snap.ExecutionTimeMs, formatBytes(snap.MemoryBytes))
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
