package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/attendance-cli/internal/model"
	"github.com/sells-group/attendance-cli/internal/store"
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "List anomaly flags from a pipeline run",
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
		limit, _ := cmd.Flags().GetInt("limit")

		runID, err = resolveRunID(ctx, st, runID)
		if err != nil {
			return err
		}

		flags, err := st.ListAnomalies(ctx, store.FlagFilter{RunID: runID, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "anomalies")
		}

		if len(flags) == 0 {
			fmt.Fprintln(os.Stderr, "No anomalies found.")
			return nil
		}

		formatAnomalies(os.Stdout, flags)
		return nil
	},
}

var exceptionsCmd = &cobra.Command{
	Use:   "exceptions",
	Short: "List exception flags from a pipeline run",
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
		session, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")

		runID, err = resolveRunID(ctx, st, runID)
		if err != nil {
			return err
		}

		flags, err := st.ListExceptions(ctx, store.FlagFilter{RunID: runID, SessionID: session, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "exceptions")
		}

		if len(flags) == 0 {
			fmt.Fprintln(os.Stderr, "No exceptions found.")
			return nil
		}

		formatExceptions(os.Stdout, flags)
		return nil
	},
}

func formatAnomalies(out io.Writer, flags []model.AnomalyFlag) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tSCORE\tEXPLANATION")
	for _, f := range flags {
		_, _ = fmt.Fprintf(w, "%s\t%.4f\t%s\n", f.SessionID, f.Score, f.Explanation)
	}
	_ = w.Flush()
}

func formatExceptions(out io.Writer, flags []model.ExceptionFlag) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tCODE\tSEVERITY\tEXPLANATION")
	for _, f := range flags {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.SessionID, f.Code, f.Severity, f.Explanation)
	}
	_ = w.Flush()
}

func init() {
	anomaliesCmd.Flags().String("run", "", "run id (defaults to the latest run)")
	anomaliesCmd.Flags().Int("limit", 100, "max number of flags to display")

	exceptionsCmd.Flags().String("run", "", "run id (defaults to the latest run)")
	exceptionsCmd.Flags().String("session", "", "filter by session id")
	exceptionsCmd.Flags().Int("limit", 100, "max number of flags to display")

	rootCmd.AddCommand(anomaliesCmd)
	rootCmd.AddCommand(exceptionsCmd)
}
