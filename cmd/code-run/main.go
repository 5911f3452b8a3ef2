package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverFlag   string
	languageFlag string
)

var rootCmd = &cobra.Command{
	Use:   "code-run",
	Short: "code-run - run code in sandboxed containers",
	Long: `code-run executes code snippets in Docker sandboxes and tracks the
result over a push channel with a polling fallback.

Start the service with "code-run serve", then submit code with
"code-run run" or the interactive "code-run repl".`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Base URL of the code-run server (overrides config)")
	rootCmd.PersistentFlags().StringVar(&languageFlag, "language", "python", "Language to execute (python, javascript, go, ruby)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
