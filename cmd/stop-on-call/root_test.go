package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServeFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: runServe}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().String("env-file", "", "")
	addConfigFlags(cmd.Flags())
	return cmd
}

func TestOverrides_OnlyChangedFlags(t *testing.T) {
	cmd := newServeFlags()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9090", "--grace-period", "1s", "--method=post"}))

	got := overrides(cmd.Flags())

	assert.Equal(t, map[string]string{
		"port":         "9090",
		"grace_period": "1s",
		"method":       "post",
	}, got)
}

func TestOverrides_NoneSet(t *testing.T) {
	cmd := newServeFlags()
	require.NoError(t, cmd.Flags().Parse(nil))

	assert.Empty(t, overrides(cmd.Flags()))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	assert.True(t, strings.HasPrefix(out.String(), "stop-on-call version "))
	assert.NotContains(t, strings.TrimSuffix(out.String(), "\n"), "\n")
}

func TestServe_InvalidConfigFile(t *testing.T) {
	environ = func() []string { return nil }
	defer func() { environ = defaultEnviron }()

	cmd := newServeFlags()
	cmd.SetArgs([]string{"--config", t.TempDir() + "/missing.yaml"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	assert.Error(t, err)
}
