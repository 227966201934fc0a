package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

var scheduleStore string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage backup schedules",
	Long:  "Create, list, run and reset recurring backup schedules",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <daily|weekly|monthly>",
	Short: "Create a backup schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		pattern := domain.SchedulePattern(args[0])
		if !pattern.Valid() {
			return fmt.Errorf("pattern must be daily, weekly or monthly")
		}

		schedule, err := services.ScheduleService.CreateSchedule(cmd.Context(), scheduleStore, pattern)
		if err != nil {
			return fmt.Errorf("failed to create schedule: %w", err)
		}

		fmt.Printf("Schedule ID: %d\n", schedule.ID)
		fmt.Printf("Store: %s\n", schedule.StoreName)
		fmt.Printf("Pattern: %s\n", schedule.Pattern)
		fmt.Printf("Next run: %s\n", schedule.NextRunTime.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		schedules, err := services.ScheduleService.ListSchedules(cmd.Context(), repository.ScheduleFilter{})
		if err != nil {
			return fmt.Errorf("failed to list schedules: %w", err)
		}

		if len(schedules) == 0 {
			fmt.Println("No schedules configured")
			return nil
		}

		for _, s := range schedules {
			fmt.Printf("%d\t%s\t%s\t%s\tnext run %s\n",
				s.ID, s.StoreName, s.Pattern, s.Status,
				s.NextRunTime.Format("2006-01-02 15:04 MST"))
		}
		return nil
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <schedule-id>",
	Short: "Run one schedule now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("schedule id must be an integer")
		}

		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		report, err := services.ScheduleService.ExecuteScheduled(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to run schedule: %w", err)
		}

		printRunReport(report)
		return nil
	},
}

var scheduleResetCmd = &cobra.Command{
	Use:   "reset <schedule-id>",
	Short: "Reset a halted schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("schedule id must be an integer")
		}

		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		schedule, err := services.ScheduleService.ResetSchedule(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to reset schedule: %w", err)
		}

		fmt.Printf("Schedule %d reset, next run %s\n",
			schedule.ID, schedule.NextRunTime.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("schedule id must be an integer")
		}

		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		if err := services.ScheduleService.DeleteSchedule(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete schedule: %w", err)
		}

		fmt.Printf("Deleted schedule %d\n", id)
		return nil
	},
}

var scheduleCronCmd = &cobra.Command{
	Use:   "cron <daily|weekly|monthly>",
	Short: "Run every due schedule of a pattern",
	Long:  "Run every active schedule of the pattern whose next run time has passed (intended as the cron entry point)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := domain.SchedulePattern(args[0])
		if !pattern.Valid() {
			return fmt.Errorf("pattern must be daily, weekly or monthly")
		}

		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		reports, err := services.ScheduleService.RunDue(cmd.Context(), &pattern)
		if err != nil {
			return fmt.Errorf("failed to run due schedules: %w", err)
		}

		fmt.Printf("Executed %d schedule(s)\n", len(reports))
		for _, report := range reports {
			printRunReport(report)
		}
		return nil
	},
}

func printRunReport(r *domain.ScheduleRunReport) {
	if r.Error != "" {
		fmt.Printf("Schedule %d (%s): failed: %s\n", r.ScheduleID, r.Pattern, r.Error)
		return
	}
	fmt.Printf("Schedule %d (%s): %s backup %s\n", r.ScheduleID, r.Pattern, r.BackupType, r.BackupID)
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleResetCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	scheduleCmd.AddCommand(scheduleCronCmd)

	// Add flags
	scheduleCreateCmd.Flags().StringVar(&scheduleStore, "store", "", "Store name (defaults to the configured source store)")
}
