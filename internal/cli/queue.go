package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayBatch int

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the deferred-operation queue",
	Long:  "Inspect and replay writes that were queued while the source store was unavailable",
}

var queueReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay pending operations against the source store",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		result, err := services.QueueService.ReplayPending(cmd.Context(), replayBatch)
		if err != nil {
			return fmt.Errorf("failed to replay queue: %w", err)
		}

		fmt.Printf("Replayed: %d\n", result.Replayed)
		fmt.Printf("Failed: %d\n", result.Failed)
		fmt.Printf("Dead-lettered: %d\n", result.DeadLetter)
		for _, msg := range result.Errors {
			fmt.Printf("Error: %s\n", msg)
		}

		return nil
	},
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		stats, err := services.QueueService.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read queue stats: %w", err)
		}

		fmt.Printf("Pending: %d\n", stats.Pending)
		fmt.Printf("Dead-lettered: %d\n", stats.Dead)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueReplayCmd)
	queueCmd.AddCommand(queueStatsCmd)

	// Add flags
	queueReplayCmd.Flags().IntVar(&replayBatch, "batch", 100, "Maximum operations to replay in one run")
}
