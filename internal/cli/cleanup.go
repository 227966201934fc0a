package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupBackupID string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run backup cleanup",
	Long:  "Delete backups past the retention window (typically used by cron)",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		if cleanupBackupID != "" {
			// Delete one specific backup regardless of age
			result, err := services.CleanupService.DeleteBackup(cmd.Context(), cleanupBackupID)
			if err != nil {
				return fmt.Errorf("failed to delete backup: %w", err)
			}
			fmt.Printf("Deleted backup %s (%d objects)\n", cleanupBackupID, result.DeletedObjects)
			for _, failure := range result.Failures {
				fmt.Printf("Warning: %s\n", failure)
			}
			return nil
		}

		result, err := services.CleanupService.CleanupOldBackups(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to run cleanup: %w", err)
		}

		fmt.Printf("Deleted backups: %d\n", result.DeletedBackups)
		fmt.Printf("Deleted objects: %d\n", result.DeletedObjects)
		for _, failure := range result.Failures {
			fmt.Printf("Warning: %s\n", failure)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().StringVar(&cleanupBackupID, "backup-id", "", "Delete this backup only, regardless of age")
}
