package main

import (
	"github.com/spf13/cobra"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "brewd",
	Short: "MCP tool server for a networked espresso machine",
	Long: `brewd lets AI agents design, validate, and run espresso brewing
profiles on a networked espresso machine over MCP.

Profiles are validated against the machine's schema and a set of safety
rules (pressure ceiling, required limits, failsafe triggers) before
anything reaches the hardware. The machine itself is the system of
record; brewd keeps no local state.

Configuration is read from BREWD_* environment variables; BREWD_DEVICE_URL
is required for every command that talks to the machine.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(machineCmd)
	rootCmd.AddCommand(configCmd)
}
