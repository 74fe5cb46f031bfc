package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stop-on-call",
	Short: "An HTTP service that shuts itself down when asked to",
	Long: `Stop-on-Call serves GET /healthz and a stop route on "/". A request to the stop route,
optionally guarded by a shared secret, drains in-flight requests and exits.

Configuration is read from a YAML file, a .env file and STOP_ON_CALL_* environment
variables, in increasing order of precedence. Flags override all of them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file, ignored when missing")
}
