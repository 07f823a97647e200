package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/database/postgres"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance record commands",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance recorded for a session",
	Long: `List the attendance records written for one session.

Example:
  roll-call attendance list --session s-42`,
	RunE: runAttendanceList,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)

	attendanceListCmd.Flags().String("session", "", "Session ID")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
	_ = attendanceListCmd.MarkFlagRequired("session")
}

// requireDatabase loads config for commands that only talk to PostgreSQL.
func requireDatabase() (*config.Config, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	return cfg, nil
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	sessionID := mustGetString(cmd, "session")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := requireDatabase()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	records, err := postgres.NewAttendanceRepository(pool).ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	if jsonOutput {
		if records == nil {
			records = []database.AttendanceRecord{}
		}
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance recorded for session %s.\n", sessionID)
		return nil
	}

	fmt.Printf("\nAttendance for session %s (%d records):\n\n", sessionID, len(records))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tSTUDENT\tSTATUS\tDATE\tMARKED AT")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.RollNumber, r.StudentID, r.Status,
			r.AttendanceDate.Format(database.DateLayout), r.MarkedAt.Format("2006-01-02 15:04:05 MST"))
	}
	w.Flush()
	return nil
}
