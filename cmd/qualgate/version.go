package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("qualgate", version.String())
	},
}
