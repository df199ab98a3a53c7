package domain

// Tool is one tool advertised by a live session, tagged with the owning
// server's name so callers can route invocations back to it.
type Tool struct {
	// Name of the tool, unique within one session.
	Name string `json:"name" yaml:"name"`

	// Description is a human-readable description of what the tool does.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// InputSchema is the JSON schema for the tool's arguments, as declared
	// by the server.
	InputSchema map[string]any `json:"inputSchema,omitempty" yaml:"input_schema,omitempty"`

	// Server is the catalog name of the server that advertised this tool.
	Server string `json:"server" yaml:"server"`
}
