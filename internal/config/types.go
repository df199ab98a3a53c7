package config

import (
	"maps"
	"slices"

	"github.com/agentfleet/mcpmux/internal/domain"
)

var _ Loader = (*DefaultLoader)(nil)

// Loader loads a server catalog from a file path.
type Loader interface {
	Load(path string) (*Catalog, error)
}

// DefaultLoader is the standard TOML-backed catalog loader.
type DefaultLoader struct{}

// ServerEntry is the static descriptor of a single MCP server in the catalog.
// Entries are read-only once loaded; per-user state never mutates them.
type ServerEntry struct {
	// Name is the unique catalog name for the server, e.g. 'github'.
	Name string `json:"name" toml:"name" yaml:"name"`

	// Command is the executable used to launch the server, e.g. 'uvx'.
	Command string `json:"command" toml:"command" yaml:"command"`

	// Args are the launch arguments, in order.
	Args []string `json:"args,omitempty" toml:"args,omitempty" yaml:"args,omitempty"`

	// Env is the base launch environment. Values may be literal settings or
	// placeholder markers that credential inference turns into requirements.
	Env map[string]string `json:"env,omitempty" toml:"env,omitempty" yaml:"env,omitempty"`

	// RequiredCredentials are explicitly declared credential requirements.
	// Explicit entries take precedence over inferred ones for the same env var.
	RequiredCredentials []CredentialEntry `json:"requiredCredentials,omitempty" toml:"required_credentials,omitempty" yaml:"required_credentials,omitempty"`

	// Description is a human description of the server.
	Description string `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`

	// envOrder records the declaration order of Env keys in the catalog file,
	// so inferred requirements come out in a stable, file-faithful order.
	envOrder []string
}

// CredentialEntry is the catalog representation of an explicitly declared
// credential requirement.
type CredentialEntry struct {
	Type              string `json:"type,omitempty" toml:"type,omitempty" yaml:"type,omitempty"`
	Name              string `json:"name" toml:"name" yaml:"name"`
	Description       string `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Optional          bool   `json:"optional,omitempty" toml:"optional,omitempty" yaml:"optional,omitempty"`
	EnvVar            string `json:"envVar,omitempty" toml:"env_var,omitempty" yaml:"env_var,omitempty"`
	ValidationPattern string `json:"validationPattern,omitempty" toml:"validation_pattern,omitempty" yaml:"validation_pattern,omitempty"`
}

// Requirement converts the catalog entry to its domain form.
// Catalog credentials are required unless marked optional, and default to the
// generic type when unclassified.
func (c CredentialEntry) Requirement() domain.CredentialRequirement {
	credType := domain.CredentialType(c.Type)
	if credType == "" {
		credType = domain.CredentialTypeGeneric
	}

	description := c.Description
	if description == "" {
		description = "Credential: " + c.Name
	}

	return domain.CredentialRequirement{
		Type:              credType,
		Name:              c.Name,
		Description:       description,
		Required:          !c.Optional,
		EnvVar:            c.EnvVar,
		ValidationPattern: c.ValidationPattern,
	}
}

// EnvKeys returns the base environment keys in declaration order when the
// entry was loaded from a catalog file, falling back to sorted order for
// entries constructed in code.
func (e *ServerEntry) EnvKeys() []string {
	if len(e.envOrder) == len(e.Env) {
		return slices.Clone(e.envOrder)
	}
	return slices.Sorted(maps.Keys(e.Env))
}
