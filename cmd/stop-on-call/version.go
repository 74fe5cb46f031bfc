package main

import (
	"fmt"
	"strings"

	stoponcall "github.com/aretw0/stop-on-call"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of stop-on-call",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stop-on-call version %s\n", strings.TrimSpace(stoponcall.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
