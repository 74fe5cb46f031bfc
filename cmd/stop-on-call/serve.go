package main

import (
	"strings"

	stoponcall "github.com/aretw0/stop-on-call"
	"github.com/aretw0/stop-on-call/internal/logging"
	"github.com/aretw0/stop-on-call/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the service (default)",
	Long:  `Binds the listener and serves until the stop route is called or an interrupt arrives, then drains in-flight requests within the grace period.`,
	RunE:  runServe,
}

// configFlags are flags that map onto configuration keys ("grace-period" -> "grace_period").
var configFlags = []string{
	"host", "port", "method", "grace-period", "metrics-addr",
	"redis-url", "redis-channel", "redis-status-key", "log-level", "log-format",
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, warnings, err := config.Load(config.Sources{
		File:      cfgFile,
		DotEnv:    envFile,
		Environ:   environ(),
		Overrides: overrides(cmd.Flags()),
	})
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	format, _ := logging.ParseFormat(cfg.LogFormat)
	logger := logging.New(level, format)

	for _, w := range warnings {
		logger.Warn("Invalid configuration value, using default",
			"key", w.Key, "env", config.EnvName(w.Key), "value", w.Value, "fallback", w.Fallback)
	}

	svc := stoponcall.New(cfg,
		stoponcall.WithLogger(logger),
		stoponcall.WithBannerWriter(cmd.OutOrStdout()),
	)
	if err := svc.Run(cmd.Context()); err != nil {
		logger.Error("Service failed", "error", err)
		return err
	}
	logger.Info("Service stopped")
	return nil
}

// overrides collects the configuration flags set explicitly on the command line.
func overrides(flags *pflag.FlagSet) map[string]string {
	out := map[string]string{}
	for _, name := range configFlags {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		out[strings.ReplaceAll(name, "-", "_")] = f.Value.String()
	}
	return out
}

func addConfigFlags(f *pflag.FlagSet) {
	f.String("host", config.DefaultHost, "IP address to bind")
	f.StringP("port", "p", "8080", "port to listen on (0 picks a free port)")
	f.String("method", "GET", "HTTP method of the stop route (GET or POST)")
	f.String("grace-period", config.DefaultGracePeriod.String(), "time in-flight requests get to finish")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.String("redis-url", "", "subscribe to remote stop requests on this Redis")
	f.String("redis-channel", config.DefaultRedisChannel, "Redis channel carrying stop requests")
	f.String("redis-status-key", config.DefaultRedisStatusKey, "Redis key prefix for status events")
	f.String("log-level", config.DefaultLogLevel, "debug, info, warn or error")
	f.String("log-format", config.DefaultLogFormat, "text or json")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConfigFlags(rootCmd.Flags())
	addConfigFlags(serveCmd.Flags())

	// Serving is the default when no subcommand is given.
	rootCmd.RunE = serveCmd.RunE
}
