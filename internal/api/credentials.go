package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentfleet/mcpmux/internal/authflow"
	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/resolver"
)

// CredentialRequirement represents one secret a server needs before it can be
// launched for a user.
type CredentialRequirement struct {
	// Type classifies the kind of secret (oauth_token, api_key, ...).
	Type string `doc:"Classified kind of credential" json:"type"`

	// Name is the human display name; collected values are keyed by it.
	Name string `doc:"Display name of the credential" json:"name"`

	// Description explains the requirement to the user.
	Description string `doc:"Description of the requirement" json:"description,omitempty"`

	// Required marks whether a session can be established without this value.
	Required bool `doc:"Whether the credential is required" json:"required"`

	// EnvVar is the environment variable the collected value is injected as.
	EnvVar string `doc:"Target environment variable" json:"envVar,omitempty"`
}

// ServerCredentialsRequest represents the incoming request for inspecting a
// user's credential state on one server.
type ServerCredentialsRequest struct {
	User   string `doc:"ID of the user"     example:"U024BE7LH" path:"user"`
	Server string `doc:"Name of the server" example:"github"    path:"server"`
}

// ServerCredentialsResponse represents the wrapped API response for a user's
// credential state on one server.
type ServerCredentialsResponse struct {
	Body struct {
		Requirements []CredentialRequirement `doc:"Every credential the server declares or implies" json:"requirements"`
		Missing      []CredentialRequirement `doc:"Required credentials the user has not supplied"  json:"missing"`
	}
}

// FlowStartRequest represents the incoming request for starting a credential
// collection flow.
type FlowStartRequest struct {
	User   string `doc:"ID of the user"     example:"U024BE7LH" path:"user"`
	Server string `doc:"Name of the server" example:"github"    path:"server"`
}

// FlowPrompt describes the single credential a flow expects next.
type FlowPrompt struct {
	// FlowID identifies the in-flight flow for subsequent submissions.
	FlowID string `doc:"Identifier of the flow" json:"flowId"`

	// Requirement is the credential being prompted for.
	Requirement CredentialRequirement `doc:"Credential being collected" json:"requirement"`

	// Index is the zero-based position of this prompt in the flow.
	Index int `doc:"Zero-based step index" json:"index"`

	// Total is the number of credentials the flow collects.
	Total int `doc:"Total number of steps" json:"total"`
}

// FlowStartResponse represents the wrapped API response for a started flow.
type FlowStartResponse struct {
	Body FlowPrompt
}

// domainRequirement wraps domain.CredentialRequirement for conversion to the API type.
type domainRequirement domain.CredentialRequirement

// ToAPIType converts a wrapped domain type to CredentialRequirement.
func (d domainRequirement) ToAPIType() (CredentialRequirement, error) {
	return CredentialRequirement{
		Type:        string(d.Type),
		Name:        d.Name,
		Description: d.Description,
		Required:    d.Required,
		EnvVar:      d.EnvVar,
	}, nil
}

// domainPrompt wraps authflow.Prompt for conversion to the API type.
type domainPrompt authflow.Prompt

// ToAPIType converts a wrapped domain type to FlowPrompt.
func (d domainPrompt) ToAPIType() (FlowPrompt, error) {
	req, err := domainRequirement(d.Requirement).ToAPIType()
	if err != nil {
		return FlowPrompt{}, err
	}

	return FlowPrompt{
		FlowID:      d.FlowID,
		Requirement: req,
		Index:       d.Index,
		Total:       d.Total,
	}, nil
}

func registerCredentialRoutes(parentAPI huma.API, res *resolver.Resolver, flows *authflow.Manager) {
	tags := []string{"Credentials"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "getServerCredentials",
			Method:      http.MethodGet,
			Path:        "/{user}/servers/{server}/credentials",
			Summary:     "Inspect a user's credential state for a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerCredentialsRequest) (*ServerCredentialsResponse, error) {
			return handleServerCredentials(ctx, res, input.User, input.Server)
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "startCredentialFlow",
			Method:      http.MethodPost,
			Path:        "/{user}/servers/{server}/flows",
			Summary:     "Start collecting a user's missing credentials for a server",
			Description: "Begins a sequential collection flow over the credentials the user has not yet supplied. " +
				"Fails when nothing is missing.",
			Tags: tags,
		},
		func(ctx context.Context, input *FlowStartRequest) (*FlowStartResponse, error) {
			return handleFlowStart(ctx, res, flows, input.User, input.Server)
		},
	)
}

// handleServerCredentials is the handler for inspecting requirements and missing credentials.
func handleServerCredentials(
	ctx context.Context,
	res *resolver.Resolver,
	userID string,
	serverName string,
) (*ServerCredentialsResponse, error) {
	reqs, err := res.Requirements(userID, serverName)
	if err != nil {
		return nil, err
	}

	missing, err := res.MissingCredentials(ctx, userID, serverName)
	if err != nil {
		return nil, err
	}

	resp := &ServerCredentialsResponse{}
	resp.Body.Requirements, err = toAPIRequirements(reqs)
	if err != nil {
		return nil, err
	}
	resp.Body.Missing, err = toAPIRequirements(missing)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// handleFlowStart is the handler for starting a collection flow over a user's
// missing credentials.
func handleFlowStart(
	ctx context.Context,
	res *resolver.Resolver,
	flows *authflow.Manager,
	userID string,
	serverName string,
) (*FlowStartResponse, error) {
	missing, err := res.MissingCredentials(ctx, userID, serverName)
	if err != nil {
		return nil, err
	}

	prompt, err := flows.Start(userID, serverName, missing)
	if err != nil {
		return nil, err
	}

	data, err := domainPrompt(prompt).ToAPIType()
	if err != nil {
		return nil, err
	}

	resp := &FlowStartResponse{}
	resp.Body = data

	return resp, nil
}

func toAPIRequirements(reqs []domain.CredentialRequirement) ([]CredentialRequirement, error) {
	out := make([]CredentialRequirement, 0, len(reqs))
	for _, req := range reqs {
		data, err := domainRequirement(req).ToAPIType()
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
