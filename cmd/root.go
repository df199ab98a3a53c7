// Package cmd defines the mcpmux CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	internalcmd "github.com/agentfleet/mcpmux/internal/cmd"
	"github.com/agentfleet/mcpmux/internal/flags"
)

// RootCmd should be used to represent the root command.
type RootCmd struct {
	*internalcmd.BaseCmd
}

// Execute builds the root command and runs it.
func Execute() error {
	rootCmd, err := NewRootCmd()
	if err != nil {
		return err
	}

	return rootCmd.Execute()
}

// NewRootCmd creates the newly configured root (Cobra) command.
func NewRootCmd() (*cobra.Command, error) {
	c := &RootCmd{
		BaseCmd: &internalcmd.BaseCmd{},
	}

	rootCmd := &cobra.Command{
		Use:   "mcpmux <command> [args]",
		Short: "'mcpmux' multiplexes per-user sessions onto MCP servers",
		Long: "'mcpmux' launches MCP servers on demand with per-user credentials, " +
			"gates them behind credential collection, and routes tool calls via HTTP API.",
		SilenceUsage: true,
		Version:      internalcmd.Version(),
	}

	// Global flags.
	flags.InitFlags(rootCmd.PersistentFlags())

	daemonCmd, err := NewDaemonCmd(c.BaseCmd)
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(daemonCmd)

	serversCmd, err := NewServersCmd(c.BaseCmd)
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(serversCmd)

	return rootCmd, nil
}
