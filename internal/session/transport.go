package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/contracts"
)

// StdioTransportFactory launches a server subprocess with the given launch
// environment and speaks MCP over its standard streams. The subprocess's
// stderr is piped to the logger so server-side diagnostics are not lost.
func StdioTransportFactory(logger hclog.Logger) contracts.TransportFactory {
	return func(_ context.Context, entry config.ServerEntry, env []string) (contracts.SessionTransport, error) {
		stdioClient, err := client.NewStdioMCPClient(entry.Command, env, entry.Args...)
		if err != nil {
			return nil, fmt.Errorf("starting '%s %v': %w", entry.Command, entry.Args, err)
		}

		// The drain lives as long as the subprocess, not the request that
		// created the session: Terminate closes the process, which EOFs the
		// stream and ends the goroutine. Stopping earlier would leave stderr
		// unread and stall a chatty server on a full pipe.
		if stderr, ok := client.GetStderr(stdioClient); ok {
			go pipeStderr(logger.With("server", entry.Name), stderr)
		}

		return stdioClient, nil
	}
}

// pipeStderr forwards subprocess stderr lines to the logger until the stream
// closes.
func pipeStderr(logger hclog.Logger, stderr io.Reader) {
	reader := bufio.NewReader(stderr)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			logger.Debug("stderr", "line", line)
		}
		if err != nil {
			if err != io.EOF {
				logger.Error("Error reading stderr", "error", err)
			}
			return
		}
	}
}

// environ renders an env map as sorted KEY=VALUE pairs for process launch.
func environ(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}
