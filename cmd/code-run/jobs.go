package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cddevrks/code-run/internal/config"
	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/storage"
	"github.com/cddevrks/code-run/internal/storage/sqlite"
)

var (
	statusFilter string
	limitFlag    int
	forceFlag    bool
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job", "j"},
	Short:   "Inspect execution history",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past jobs",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show job details and output",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDelete,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsDeleteCmd)

	jobsListCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (queued, running, completed, failed)")
	jobsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max jobs to show")

	jobsDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func openStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := storage.JobListOptions{
		Status: job.Status(statusFilter),
		Limit:  limitFlag,
	}

	jobs, err := store.ListJobs(context.Background(), opts)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-12s %-12s %-10s %s\n", "ID", "STATUS", "LANGUAGE", "TIME", "UPDATED")
	fmt.Println(strings.Repeat("─", 60))

	for _, j := range jobs {
		execTime := "-"
		if j.ExecutionTimeMs > 0 {
			execTime = fmt.Sprintf("%dms", j.ExecutionTimeMs)
		}

		fmt.Printf("%-10s %-12s %-12s %-10s %s\n",
			j.ID[:8], j.Status, j.Language, execTime, timeAgo(j.UpdatedAt))
	}

	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	j, err := store.GetJob(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job:      %s\n", j.ID)
	fmt.Printf("Language: %s\n", j.Language)
	fmt.Printf("Status:   %s\n", j.Status)
	if j.ExecutionTimeMs > 0 {
		fmt.Printf("Time:     %dms\n", j.ExecutionTimeMs)
	}
	if j.MemoryBytes > 0 {
		fmt.Printf("Memory:   %s\n", formatBytes(j.MemoryBytes))
	}
	fmt.Printf("Created:  %s\n", j.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", j.UpdatedAt.Format(time.RFC3339))

	fmt.Printf("\nCode:\n")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println(j.Code)

	if j.Output != "" {
		fmt.Printf("Output:\n")
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(j.Output)
	}
	if j.Error != "" {
		fmt.Printf("\033[31mError: %s\033[0m\n", j.Error)
	}

	return nil
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	j, err := store.GetJob(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		fmt.Printf("Delete job %s (%s, %s)? [y/N] ", j.ID[:8], j.Language, j.Status)
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteJob(ctx, j.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted job %s\n", j.ID[:8])
	return nil
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
