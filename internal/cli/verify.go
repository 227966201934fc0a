package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <backup-id>",
	Short: "Verify a backup",
	Long:  "Check that every file of a backup is present in the backup store and matches its recorded checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		result, err := services.VerificationService.VerifyBackup(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to verify backup: %w", err)
		}

		fmt.Printf("Backup ID: %s\n", result.BackupID)
		fmt.Printf("Verified: %d/%d files\n", result.VerifiedFiles, result.TotalFiles)
		for _, key := range result.MissingFiles {
			fmt.Printf("Missing: %s\n", key)
		}
		for _, key := range result.CorruptedFiles {
			fmt.Printf("Corrupted: %s\n", key)
		}
		for _, key := range result.ChecksumMismatches {
			fmt.Printf("Checksum mismatch: %s\n", key)
		}

		if !result.Success {
			return fmt.Errorf("backup %s failed verification", result.BackupID)
		}

		fmt.Println("Backup verified")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
