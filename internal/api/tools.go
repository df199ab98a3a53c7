package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentfleet/mcpmux/internal/domain"
	"github.com/agentfleet/mcpmux/internal/resolver"
)

// Tool represents one callable tool, tagged with the server that advertises
// it so same-named tools on different servers stay distinguishable.
type Tool struct {
	// Name of the tool.
	Name string `doc:"Name of the tool" json:"name"`

	// Description is a human-readable description of the tool.
	Description string `doc:"Description of what the tool does" json:"description,omitempty"`

	// Server is the catalog name of the server advertising the tool.
	Server string `doc:"Server that advertises the tool" json:"server"`

	// InputSchema is JSONSchema defining the expected parameters for the tool.
	InputSchema map[string]any `doc:"Input parameters schema" json:"inputSchema,omitempty"`
}

// UserToolsRequest represents the incoming request for listing a user's tools.
type UserToolsRequest struct {
	User string `doc:"ID of the user" example:"U024BE7LH" path:"user"`
}

// UserToolsResponse represents the wrapped API response for a user's tool surface.
type UserToolsResponse struct {
	Body struct {
		Tools []Tool `doc:"Tools reachable by the user" json:"tools"`
	}
}

// ToolCallRequest represents the incoming request for calling a tool.
type ToolCallRequest struct {
	User   string         `doc:"ID of the user"            example:"U024BE7LH" path:"user"`
	Server string         `doc:"Name of the server"        example:"github"    path:"server"`
	Tool   string         `doc:"Name of the tool to call"  example:"get_issue" path:"tool"`
	Body   map[string]any `doc:"Arguments for the tool call"`
}

// ToolCallResponse represents the wrapped API response for calling a tool.
type ToolCallResponse struct {
	Body resolver.CallResult
}

// domainTool wraps domain.Tool for conversion to the API type.
type domainTool domain.Tool

// ToAPIType converts a wrapped domain type to Tool.
func (d domainTool) ToAPIType() (Tool, error) {
	return Tool{
		Name:        d.Name,
		Description: d.Description,
		Server:      d.Server,
		InputSchema: d.InputSchema,
	}, nil
}

// RegisterUserRoutes sets up the per-user API endpoint routes: tool listing
// and invocation, credential requirements, flows, and session teardown.
func RegisterUserRoutes(parentAPI huma.API, deps Dependencies, apiPathPrefix string) {
	userAPI := huma.NewGroup(parentAPI, apiPathPrefix)

	registerToolRoutes(userAPI, deps.Resolver)
	registerCredentialRoutes(userAPI, deps.Resolver, deps.Flows)
	registerSessionRoutes(userAPI, deps.Sessions)
}

func registerToolRoutes(parentAPI huma.API, res *resolver.Resolver) {
	tags := []string{"Tools"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "listUserTools",
			Method:      http.MethodGet,
			Path:        "/{user}/tools",
			Summary:     "List the tools a user can reach",
			Description: "Aggregates tools across every server the user has complete credentials for. " +
				"Servers with missing required credentials are omitted.",
			Tags: tags,
		},
		func(ctx context.Context, input *UserToolsRequest) (*UserToolsResponse, error) {
			return handleUserTools(ctx, res, input.User)
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "callUserTool",
			Method:      http.MethodPost,
			Path:        "/{user}/servers/{server}/tools/{tool}",
			Summary:     "Call a tool as a user",
			Tags:        tags,
		},
		func(ctx context.Context, input *ToolCallRequest) (*ToolCallResponse, error) {
			return handleUserToolCall(ctx, res, input)
		},
	)
}

// handleUserTools is the handler for retrieving the aggregated tool surface for one user.
func handleUserTools(ctx context.Context, res *resolver.Resolver, userID string) (*UserToolsResponse, error) {
	tools := res.ToolsForUser(ctx, userID)

	apiTools := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		data, err := domainTool(tool).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiTools = append(apiTools, data)
	}

	resp := &UserToolsResponse{}
	resp.Body.Tools = apiTools

	return resp, nil
}

// handleUserToolCall is the handler for routing one tool invocation.
func handleUserToolCall(ctx context.Context, res *resolver.Resolver, input *ToolCallRequest) (*ToolCallResponse, error) {
	result, err := res.CallTool(ctx, input.User, input.Server, input.Tool, input.Body)
	if err != nil {
		return nil, err
	}

	resp := &ToolCallResponse{}
	resp.Body = *result

	return resp, nil
}
