package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	internalcmd "github.com/agentfleet/mcpmux/internal/cmd"
	"github.com/agentfleet/mcpmux/internal/cmd/output"
	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/flags"
	"github.com/agentfleet/mcpmux/internal/metadata"
)

// ServersCmd should be used to represent the 'servers' command.
type ServersCmd struct {
	*internalcmd.BaseCmd
	Format    internalcmd.OutputFormat
	cfgLoader config.Loader
}

// ServerView is the printable form of one catalog server and its credential
// requirements.
type ServerView struct {
	Name         string                         `json:"name"                   yaml:"name"`
	Command      string                         `json:"command"                yaml:"command"`
	Args         []string                       `json:"args,omitempty"         yaml:"args,omitempty"`
	Description  string                         `json:"description,omitempty"  yaml:"description,omitempty"`
	Requirements []domain.CredentialRequirement `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// NewServersCmd creates a newly configured (Cobra) command.
func NewServersCmd(baseCmd *internalcmd.BaseCmd) (*cobra.Command, error) {
	c := &ServersCmd{
		BaseCmd:   baseCmd,
		Format:    internalcmd.FormatText,
		cfgLoader: &config.DefaultLoader{},
	}

	cobraCommand := &cobra.Command{
		Use:   "servers",
		Short: "Lists catalog servers and their credential requirements",
		Long: "Lists every server in the catalog along with the credentials a user must " +
			"supply before a session can be established, both declared and inferred.",
		RunE: c.run,
	}

	allowedFormats := internalcmd.AllowedOutputFormats()
	cobraCommand.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Output format, one of: %s", allowedFormats.String()),
	)

	return cobraCommand, nil
}

// run is configured (via NewServersCmd) to be called by the Cobra framework when the command is executed.
func (c *ServersCmd) run(cobraCmd *cobra.Command, _ []string) error {
	catalog, err := c.cfgLoader.Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	servers := catalog.Servers()
	views := make([]ServerView, 0, len(servers))
	for _, entry := range servers {
		views = append(views, ServerView{
			Name:         entry.Name,
			Command:      entry.Command,
			Args:         entry.Args,
			Description:  entry.Description,
			Requirements: metadata.Infer(entry),
		})
	}

	handler, err := c.outputHandler(cobraCmd.OutOrStdout())
	if err != nil {
		return err
	}

	return handler.HandleResults(views...)
}

func (c *ServersCmd) outputHandler(w io.Writer) (output.Handler[ServerView], error) {
	switch c.Format {
	case internalcmd.FormatJSON:
		return output.NewJSONHandler[ServerView](w, 2), nil
	case internalcmd.FormatYAML:
		return output.NewYAMLHandler[ServerView](w, 2), nil
	case internalcmd.FormatText:
		return output.NewTextHandler[ServerView](w, &serverPrinter{}), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", c.Format.String())
	}
}

// serverPrinter renders ServerView items for terminal output.
type serverPrinter struct{}

func (p *serverPrinter) Header(w io.Writer, count int) {
	_, _ = fmt.Fprintf(w, "Catalog servers (%d):\n\n", count)
}

func (p *serverPrinter) Item(w io.Writer, view ServerView) error {
	launch := view.Command
	if len(view.Args) > 0 {
		launch = fmt.Sprintf("%s %s", view.Command, strings.Join(view.Args, " "))
	}

	_, _ = fmt.Fprintf(w, "  %s\n", view.Name)
	if view.Description != "" {
		_, _ = fmt.Fprintf(w, "    %s\n", view.Description)
	}
	_, _ = fmt.Fprintf(w, "    launch: %s\n", launch)

	if len(view.Requirements) == 0 {
		_, _ = fmt.Fprintf(w, "    credentials: none\n\n")
		return nil
	}

	_, _ = fmt.Fprintf(w, "    credentials:\n")
	for _, req := range view.Requirements {
		optional := ""
		if !req.Required {
			optional = " (optional)"
		}
		_, _ = fmt.Fprintf(w, "      - %s [%s]%s\n", req.Name, req.Type, optional)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}

func (p *serverPrinter) Footer(io.Writer, int) {}
