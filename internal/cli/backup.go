package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

var sourceName string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create backups",
	Long:  "Create full or incremental backups (typically used by cron)",
}

var backupFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Create a full backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		manifest, err := services.BackupService.CreateFullBackup(cmd.Context(), sourceName)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}

		printManifest(manifest)
		return nil
	},
}

var backupIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Create an incremental backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		manifest, err := services.BackupService.CreateIncrementalBackup(cmd.Context(), sourceName)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}

		printManifest(manifest)
		return nil
	},
}

func printManifest(m *domain.BackupManifest) {
	fmt.Printf("Backup ID: %s\n", m.ID)
	fmt.Printf("Type: %s\n", m.Type)
	fmt.Printf("Status: %s\n", m.Status)
	fmt.Printf("Files: %d\n", m.FileCount)
	fmt.Printf("Total size: %d bytes\n", m.TotalSize)
	if m.Checksum != "" {
		fmt.Printf("Checksum: %s\n", m.Checksum)
	}
	if m.ErrorMessage != nil {
		fmt.Printf("Error: %s\n", *m.ErrorMessage)
	}
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupFullCmd)
	backupCmd.AddCommand(backupIncrementalCmd)

	// Add flags
	backupFullCmd.Flags().StringVar(&sourceName, "source", "", "Source store name (defaults to the configured store)")
	backupIncrementalCmd.Flags().StringVar(&sourceName, "source", "", "Source store name (defaults to the configured store)")
}
