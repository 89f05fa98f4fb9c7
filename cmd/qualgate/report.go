package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/report"
)

var (
	reportCriteria bool
	reportOut      string
)

var reportCmd = &cobra.Command{
	Use:   "report [execution-id]",
	Short: "Show the report of an execution",
	Long: `Report prints the result of an execution, or of the most recent one when
no id is given. With --out the JSON report is written to a file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportCriteria, "criteria", false, "Include per-criterion rows")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write the JSON report to this file")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	var id string
	if len(args) == 1 {
		id = args[0]
	} else {
		latest, err := a.db.ListExecutions(ctx, 1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return fmt.Errorf("no executions recorded yet")
		}
		id = latest[0].ExecutionID
	}

	result, err := a.pipeline.Execution(ctx, id)
	if err != nil {
		return err
	}

	if reportOut != "" {
		data, err := report.Marshal(result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportOut, data, 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if jsonOutput() {
		data, err := report.Marshal(result)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return report.Render(os.Stdout, result, report.Options{
		Criteria:    reportCriteria,
		Assignments: assignmentsFor(a, result.ChecklistID),
	})
}
