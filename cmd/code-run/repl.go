package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/cddevrks/code-run/internal/config"
	"github.com/cddevrks/code-run/internal/language"
	"github.com/cddevrks/code-run/internal/track"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive snippet runner",
	Long: `Interactively build a snippet and run it against the code-run server.

Lines are appended to the current buffer. Commands:
  :run          submit the buffer for execution
  :lang <name>  switch language (resets the buffer to its template)
  :show         print the current buffer
  :reset        reset the buffer to the language template
  :quit         exit`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	catalog := language.Builtin()
	if cfg.LanguagesFile != "" {
		catalog, err = language.Load(cfg.LanguagesFile)
		if err != nil {
			return fmt.Errorf("loading languages: %w", err)
		}
	}

	t := newTracker(cfg)
	sess, err := track.NewSession(t, catalog, languageFlag)
	if err != nil {
		return err
	}

	fmt.Printf("code-run - Interactive Runner\n")
	fmt.Printf("Language: %s | Server: %s\n", sess.Language, cfg.Server.BaseURL)
	fmt.Printf("Type :help for commands, :quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36m> \033[0m",
		HistoryFile:     "/tmp/code-run_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(input), ":") {
			if quit := handleReplCommand(strings.TrimSpace(input), sess, catalog); quit {
				return nil
			}
			continue
		}

		sess.Code += input + "\n"
	}
}

// handleReplCommand executes one :command; returns true to exit.
func handleReplCommand(input string, sess *track.Session, catalog *language.Catalog) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case ":quit", ":exit", ":q":
		fmt.Println("Goodbye!")
		return true
	case ":run":
		runBuffer(sess)
	case ":lang":
		if len(fields) < 2 {
			fmt.Printf("usage: :lang <%s>\n\n", strings.Join(catalog.Names(), "|"))
			return false
		}
		if err := sess.SetLanguage(fields[1]); err != nil {
			fmt.Printf("\033[31m%v\033[0m\n\n", err)
			return false
		}
		fmt.Printf("Language: %s (buffer reset to template)\n\n", sess.Language)
	case ":show":
		fmt.Println(sess.Code)
	case ":reset":
		lang := sess.Language
		sess.SetLanguage(lang)
		fmt.Println("Buffer reset.")
		fmt.Println()
	case ":help":
		fmt.Println("Commands:")
		fmt.Println("  :run          - Submit the buffer for execution")
		fmt.Println("  :lang <name>  - Switch language (resets buffer)")
		fmt.Println("  :show         - Print the current buffer")
		fmt.Println("  :reset        - Reset buffer to language template")
		fmt.Println("  :quit         - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try :help)\n\n", fields[0])
	}
	return false
}

func runBuffer(sess *track.Session) {
	done := make(chan track.Snapshot, 1)
	sess.Tracker.OnUpdate = func(snap track.Snapshot) {
		if snap.Running {
			fmt.Printf("\r\033[K%s", snap.Status)
			return
		}
		select {
		case done <- snap:
		default:
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := sess.Run(ctx); err != nil {
		fmt.Printf("\r\033[K\033[31merror: %v\033[0m\n\n", err)
		return
	}

	select {
	case snap := <-done:
		printResult(snap)
	case <-ctx.Done():
		fmt.Printf("\r\033[Kgave up waiting for result\n")
	}
	fmt.Println()
}
