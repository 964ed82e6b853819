package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/attendance-cli/internal/etl"
	"github.com/sells-group/attendance-cli/internal/ingest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate input CSVs without running the pipeline",
	Long:  "Parses the input files, checks reference-data invariants (unique employee ids, unique badge and phone ownership), and reports what a run would ingest.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		employeesPath, _ := cmd.Flags().GetString("employees")
		shiftsPath, _ := cmd.Flags().GetString("shifts")
		attendancePath, _ := cmd.Flags().GetString("attendance")
		swapsPath, _ := cmd.Flags().GetString("swaps")

		loc, err := cfg.Pipeline.Location()
		if err != nil {
			return err
		}

		in, err := loadInputs(employeesPath, shiftsPath, attendancePath, swapsPath, loc)
		if err != nil {
			return err
		}

		dir, err := ingest.NewDirectory(in.Employees)
		if err != nil {
			return err
		}

		resolved, unresolved := etl.ResolveIdentities(in.Events, dir)
		normalized, unparsable := etl.NormalizeTimestamps(resolved, loc)

		fmt.Fprintf(os.Stdout, "employees: %d (%d identifiers)\n", len(in.Employees), dir.Size())
		fmt.Fprintf(os.Stdout, "shifts: %d\n", len(in.Shifts))
		fmt.Fprintf(os.Stdout, "swaps: %d\n", len(in.Swaps))
		fmt.Fprintf(os.Stdout, "events: %d total, %d resolvable, %d unknown identity, %d unparsable timestamps\n",
			len(in.Events), len(normalized), len(unresolved), len(unparsable))

		if len(unresolved)+len(unparsable) > 0 {
			fmt.Fprintln(os.Stdout, "\nthe run would divert these events to unresolved_events.csv")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("employees", "employees.csv", "employee roster CSV")
	validateCmd.Flags().String("shifts", "shifts.csv", "shift schedule CSV")
	validateCmd.Flags().String("attendance", "attendance.csv", "raw attendance events CSV")
	validateCmd.Flags().String("swaps", "", "shift swap requests CSV (optional)")

	rootCmd.AddCommand(validateCmd)
}
