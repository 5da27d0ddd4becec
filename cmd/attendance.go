package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sentry/internal/attendance"
	"github.com/kozaktomas/face-sentry/internal/config"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show or export attendance records",
	RunE:  runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("date", "", "Day to show (YYYY-MM-DD, defaults to today)")
	attendanceCmd.Flags().String("export", "", "Write the day's records as CSV to this file")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	day := time.Now()
	if s := mustGetString(cmd, "date"); s != "" {
		day, err = time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
		}
	}

	logger := attendance.New(cfg.Paths.AttendanceDir,
		time.Duration(cfg.Attendance.CooldownMinutes)*time.Minute)

	if path := mustGetString(cmd, "export"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		if err := logger.Export(day, csv.NewWriter(f)); err != nil {
			return fmt.Errorf("exporting attendance: %w", err)
		}
		fmt.Printf("Exported attendance for %s to %s\n", day.Format("2006-01-02"), path)
		return nil
	}

	summary, err := logger.Summary(day)
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}
	if len(summary) == 0 {
		fmt.Printf("No attendance records for %s\n", day.Format("2006-01-02"))
		return nil
	}

	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Attendance for %s:\n", day.Format("2006-01-02"))
	for _, name := range names {
		fmt.Printf("  %s: %d\n", name, summary[name])
	}
	return nil
}
