package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect the attendance log",
}

var attendanceHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show attendance records",
	Long: `Show attendance records ordered by date and time.

Examples:
  quickroll attendance history
  quickroll attendance history --date 2025-01-15`,
	Args: cobra.NoArgs,
	RunE: runAttendanceHistory,
}

var attendanceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's attendance",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceToday,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceHistoryCmd)
	attendanceCmd.AddCommand(attendanceTodayCmd)

	attendanceHistoryCmd.Flags().String("date", "", "Only records of this date (YYYY-MM-DD)")
}

func printRecords(records []database.AttendanceRecord) {
	if len(records) == 0 {
		fmt.Println("No attendance records.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tID\tNAME\tCONFIDENCE\tMARKED BY")
	fmt.Fprintln(w, "----\t----\t--\t----\t----------\t---------")
	for _, r := range records {
		name := r.Name
		if name == "" {
			name = "(deleted)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n", r.Date, r.Time, r.StudentID, name, r.Confidence, r.MarkedBy)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d records\n", len(records))
}

func runAttendanceHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	date := mustGetString(cmd, "date")

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	records, err := e.attendance.History(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	printRecords(records)
	return nil
}

func runAttendanceToday(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	date, records, err := e.attendance.TodayRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load attendance: %w", err)
	}
	fmt.Printf("Attendance for %s\n\n", date)
	printRecords(records)
	return nil
}
