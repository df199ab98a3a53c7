package domain

const (
	CredentialTypeOAuthToken CredentialType = "oauth_token"
	CredentialTypeAPIKey     CredentialType = "api_key"
	CredentialTypeUsername   CredentialType = "username"
	CredentialTypePassword   CredentialType = "password"
	CredentialTypeURL        CredentialType = "url"
	CredentialTypeDatabase   CredentialType = "database"
	CredentialTypeGeneric    CredentialType = "generic"
)

// CredentialType classifies the semantic kind of secret a requirement represents.
// The classification is a hint for the collection surface (input masking, prompts);
// it never changes how a value is injected into the server environment.
type CredentialType string

// CredentialRequirement describes one secret a server needs before it can be
// launched for a user. Requirements are either declared explicitly in the
// catalog or inferred from placeholder values in the server's base environment.
type CredentialRequirement struct {
	// Type is the classified kind of credential, or "generic" when unknown.
	Type CredentialType `json:"type" yaml:"type"`

	// Name is the human display name; collected secret values are keyed by it.
	Name string `json:"name" yaml:"name"`

	// Description explains the requirement to the user.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Required marks whether a session can be established without this value.
	Required bool `json:"required" yaml:"required"`

	// EnvVar is the environment variable the collected value is injected as.
	// A requirement with no EnvVar is collected but never injected.
	EnvVar string `json:"envVar,omitempty" yaml:"env_var,omitempty"`

	// ValidationPattern optionally documents the expected value format.
	ValidationPattern string `json:"validationPattern,omitempty" yaml:"validation_pattern,omitempty"`
}
