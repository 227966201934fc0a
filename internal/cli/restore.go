package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

var (
	restorePrefix     string
	restoreExtensions []string
	restoreAfter      string
	restoreBefore     string
	restoreOverwrite  bool
	restoreVerify     bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore a backup",
	Long:  "Copy the files of a backup from the backup store back into the source store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		opts := domain.RestoreOptions{
			PathPrefix:         restorePrefix,
			FileExtensions:     restoreExtensions,
			OverwriteExisting:  restoreOverwrite,
			VerifyAfterRestore: restoreVerify,
		}
		if restoreAfter != "" {
			after, err := time.Parse(time.RFC3339, restoreAfter)
			if err != nil {
				return fmt.Errorf("invalid --after value: %w", err)
			}
			opts.CreatedAfter = &after
		}
		if restoreBefore != "" {
			before, err := time.Parse(time.RFC3339, restoreBefore)
			if err != nil {
				return fmt.Errorf("invalid --before value: %w", err)
			}
			opts.CreatedBefore = &before
		}

		result, err := services.RestoreService.RestoreBackup(cmd.Context(), args[0], opts)
		if err != nil {
			return fmt.Errorf("failed to restore backup: %w", err)
		}

		fmt.Printf("Backup ID: %s\n", result.BackupID)
		fmt.Printf("Restored: %d/%d files\n", result.RestoredFiles, result.TotalFiles)
		if result.SkippedFiles > 0 {
			fmt.Printf("Skipped: %d files\n", result.SkippedFiles)
		}
		for _, msg := range result.Errors {
			fmt.Printf("Error: %s\n", msg)
		}

		if !result.Success {
			return fmt.Errorf("restore of %s did not complete cleanly", result.BackupID)
		}

		fmt.Println("Restore complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restorePrefix, "prefix", "", "Restore only keys under this prefix")
	restoreCmd.Flags().StringSliceVar(&restoreExtensions, "ext", nil, "Restore only files with these extensions (e.g. .csv)")
	restoreCmd.Flags().StringVar(&restoreAfter, "after", "", "Restore only files created after this RFC3339 timestamp")
	restoreCmd.Flags().StringVar(&restoreBefore, "before", "", "Restore only files created before this RFC3339 timestamp")
	restoreCmd.Flags().BoolVar(&restoreOverwrite, "overwrite", false, "Overwrite objects that already exist in the target store")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify", false, "Verify restored objects against recorded checksums")
}
