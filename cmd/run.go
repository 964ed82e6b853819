package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/attendance-cli/internal/etl"
	"github.com/sells-group/attendance-cli/internal/export"
	"github.com/sells-group/attendance-cli/internal/ingest"
	"github.com/sells-group/attendance-cli/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the attendance pipeline over a batch of CSV inputs",
	Long:  "Reads employee, shift, attendance, and optional swap CSVs, runs all pipeline stages, persists the results, and exports them as CSV files.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		employeesPath, _ := cmd.Flags().GetString("employees")
		shiftsPath, _ := cmd.Flags().GetString("shifts")
		attendancePath, _ := cmd.Flags().GetString("attendance")
		swapsPath, _ := cmd.Flags().GetString("swaps")
		outputDir, _ := cmd.Flags().GetString("output-dir")

		loc, err := cfg.Pipeline.Location()
		if err != nil {
			return err
		}

		in, err := loadInputs(employeesPath, shiftsPath, attendancePath, swapsPath, loc)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		result, err := etl.New(cfg, st).Run(ctx, in)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		if outputDir != "" {
			if err := export.WriteAll(outputDir, result.Artifacts); err != nil {
				return err
			}
		}

		printSummary(result)
		return nil
	},
}

func loadInputs(employeesPath, shiftsPath, attendancePath, swapsPath string, loc *time.Location) (etl.Inputs, error) {
	var in etl.Inputs
	var err error

	if in.Employees, err = ingest.ParseEmployees(employeesPath); err != nil {
		return in, err
	}
	if in.Shifts, err = ingest.ParseShifts(shiftsPath); err != nil {
		return in, err
	}
	if in.Events, err = ingest.ParseEvents(attendancePath); err != nil {
		return in, err
	}
	if swapsPath != "" {
		if in.Swaps, err = ingest.ParseSwaps(swapsPath, loc); err != nil {
			return in, err
		}
	}

	zap.L().Info("inputs loaded",
		zap.Int("employees", len(in.Employees)),
		zap.Int("shifts", len(in.Shifts)),
		zap.Int("events", len(in.Events)),
		zap.Int("swaps", len(in.Swaps)),
	)
	return in, nil
}

func printSummary(result *etl.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", result.RunID)
	_, _ = fmt.Fprintf(w, "Events:\t%d\n", result.Summary.Events)
	_, _ = fmt.Fprintf(w, "Sessions:\t%d\n", result.Summary.Sessions)
	_, _ = fmt.Fprintf(w, "Exceptions:\t%d\n", result.Summary.Exceptions)
	if result.Summary.AnomalySkipped {
		_, _ = fmt.Fprintf(w, "Anomalies:\tskipped\n")
	} else {
		_, _ = fmt.Fprintf(w, "Anomalies:\t%d\n", result.Summary.Anomalies)
	}
	_, _ = fmt.Fprintf(w, "Unresolved:\t%d\n", result.Summary.Unresolved)
	_ = w.Flush()

	printSeverityBreakdown(w, result.Artifacts.Exceptions)
}

func printSeverityBreakdown(w *tabwriter.Writer, flags []model.ExceptionFlag) {
	if len(flags) == 0 {
		return
	}
	byCode := make(map[model.ExceptionCode]int)
	for _, f := range flags {
		byCode[f.Code]++
	}
	_, _ = fmt.Fprintln(os.Stdout)
	for _, code := range []model.ExceptionCode{
		model.CodeLateCheckin, model.CodeEarlyCheckout, model.CodeMissedPunch,
		model.CodeMidShiftRegistration, model.CodeNightShiftCross,
		model.CodeExcessiveOvertime, model.CodeDoubleBadgeUse,
	} {
		if n := byCode[code]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", code, n)
		}
	}
	_ = w.Flush()
}

func init() {
	runCmd.Flags().String("employees", "employees.csv", "employee roster CSV")
	runCmd.Flags().String("shifts", "shifts.csv", "shift schedule CSV")
	runCmd.Flags().String("attendance", "attendance.csv", "raw attendance events CSV")
	runCmd.Flags().String("swaps", "", "shift swap requests CSV (optional)")
	runCmd.Flags().String("output-dir", "out", "directory for exported result CSVs")

	rootCmd.AddCommand(runCmd)
}
