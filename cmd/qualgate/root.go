package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errGateFailed is returned when a run finished without passing. Its
// message is already printed with the report.
var errGateFailed = errors.New("quality gate failed")

var rootCmd = &cobra.Command{
	Use:   "qualgate",
	Short: "Quality validation pipeline",
	Long: `qualgate builds a quality checklist for a change, validates every item
and tells you whether the change is ready to ship.

Automated criteria run commands and parse their output. Semi-automated
criteria get a model recommendation a reviewer confirms. Manual criteria
wait for a reviewer, through the review command, the HTTP server or a JSON
file dropped into .qualgate/reviews/inbox.

Failed critical items are escalated along the owner's escalation path.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errGateFailed) {
			printError(err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("repo", "", "Repository to validate (default: current directory)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: .qualgate.yaml searched upward)")
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().Bool("verbose", false, "Write the debug log to stderr instead of .qualgate/logs")
	_ = viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(escalateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
