package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/attendance-cli/internal/model"
	"github.com/sells-group/attendance-cli/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List work sessions from a pipeline run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runID, _ := cmd.Flags().GetString("run")
		employee, _ := cmd.Flags().GetString("employee")
		date, _ := cmd.Flags().GetString("date")
		limit, _ := cmd.Flags().GetInt("limit")

		runID, err = resolveRunID(ctx, st, runID)
		if err != nil {
			return err
		}

		sessions, err := st.ListSessions(ctx, store.SessionFilter{
			RunID:      runID,
			EmployeeID: employee,
			Date:       date,
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "sessions")
		}

		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}

		formatSessions(os.Stdout, sessions)
		return nil
	},
}

// resolveRunID defaults to the most recent run when none is given.
func resolveRunID(ctx context.Context, st store.Store, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	latest, err := st.LatestRun(ctx)
	if err != nil {
		return "", eris.Wrap(err, "no run id given and no runs recorded")
	}
	return latest.ID, nil
}

func formatSessions(out io.Writer, sessions []model.WorkSession) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tEMPLOYEE\tSHIFT\tDATE\tSTART\tEND\tWORKED\tOVERTIME\tFLAGS")

	for _, s := range sessions {
		shift := s.ShiftID
		if shift == "" {
			shift = "adhoc"
		}

		var marks string
		if s.IsPartial {
			marks += "partial "
		}
		if s.IsImputed {
			marks += "imputed "
		}
		if s.Unmatched {
			marks += "unmatched"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.SessionID,
			s.EmployeeID,
			shift,
			s.SessionDate.Format("2006-01-02"),
			formatClock(s.ActualStart),
			formatClock(s.ActualEnd),
			model.FormatHours(s.WorkedHours),
			model.FormatHours(s.OvertimeHours),
			marks,
		)
	}
	_ = w.Flush()
}

func formatClock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04")
}

func init() {
	sessionsCmd.Flags().String("run", "", "run id (defaults to the latest run)")
	sessionsCmd.Flags().String("employee", "", "filter by employee id")
	sessionsCmd.Flags().String("date", "", "filter by session date (YYYY-MM-DD)")
	sessionsCmd.Flags().Int("limit", 100, "max number of sessions to display")

	rootCmd.AddCommand(sessionsCmd)
}
