package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/database"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and feed the analysis queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts by status",
	RunE:  runQueueStats,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <photo-id> [photo-id...]",
	Short: "Enqueue photos for analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQueueAdd,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueAddCmd)

	queueAddCmd.Flags().Int("priority", 0, "Queue priority (higher is claimed first)")
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	pool, err := database.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	stats, err := database.NewQueueRepository(pool).Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading queue stats: %w", err)
	}

	fmt.Printf("pending:    %d\n", stats.Pending)
	fmt.Printf("processing: %d\n", stats.Processing)
	fmt.Printf("done:       %d\n", stats.Done)
	fmt.Printf("error:      %d\n", stats.Error)
	return nil
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	priority := mustGetInt(cmd, "priority")

	pool, err := database.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := database.NewQueueRepository(pool)
	for _, photoID := range args {
		if err := repo.Enqueue(cmd.Context(), photoID, priority); err != nil {
			return fmt.Errorf("enqueueing %s: %w", photoID, err)
		}
	}

	fmt.Printf("Enqueued %d photos\n", len(args))
	return nil
}
