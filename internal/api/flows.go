package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentfleet/mcpmux/internal/authflow"
)

// FlowSubmissionRequest represents one submitted credential value for a flow step.
type FlowSubmissionRequest struct {
	Flow string `doc:"Identifier of the flow" path:"flow"`
	Body struct {
		// Index must match the step the flow currently expects.
		Index int `doc:"Zero-based step index being answered" json:"index"`

		// Value is the secret being supplied for the current step.
		Value string `doc:"Credential value" json:"value"`
	}
}

// FlowSubmissionResponse represents the wrapped API response for a flow submission.
type FlowSubmissionResponse struct {
	Body struct {
		// Completed reports whether the flow finished and its values were handed
		// to the credential store.
		Completed bool `doc:"Whether the flow completed" json:"completed"`

		// Next is the following prompt when the flow is still collecting.
		Next *FlowPrompt `doc:"Next credential prompt, absent when completed" json:"next,omitempty"`
	}
}

// FlowCancelRequest represents the incoming request for cancelling a flow.
type FlowCancelRequest struct {
	Flow string `doc:"Identifier of the flow" path:"flow"`
}

// FlowCancelResponse represents the wrapped API response for a flow cancellation.
type FlowCancelResponse struct {
	Body struct {
		// Cancelled reports whether a live flow was dropped. A flow that already
		// completed, expired, or never existed reports false.
		Cancelled bool `doc:"Whether a live flow was cancelled" json:"cancelled"`
	}
}

// RegisterFlowRoutes sets up flow-related API endpoint routes.
func RegisterFlowRoutes(parentAPI huma.API, flows *authflow.Manager, apiPathPrefix string) {
	flowAPI := huma.NewGroup(parentAPI, apiPathPrefix)
	tags := []string{"Flows"}

	huma.Register(
		flowAPI,
		huma.Operation{
			OperationID: "submitFlowStep",
			Method:      http.MethodPost,
			Path:        "/{flow}/submissions",
			Summary:     "Submit the credential value for the flow's current step",
			Tags:        tags,
		},
		func(ctx context.Context, input *FlowSubmissionRequest) (*FlowSubmissionResponse, error) {
			return handleFlowSubmission(ctx, flows, input)
		},
	)

	huma.Register(
		flowAPI,
		huma.Operation{
			OperationID: "cancelFlow",
			Method:      http.MethodDelete,
			Path:        "/{flow}",
			Summary:     "Cancel an in-flight flow, discarding collected values",
			Tags:        tags,
		},
		func(ctx context.Context, input *FlowCancelRequest) (*FlowCancelResponse, error) {
			return handleFlowCancel(flows, input.Flow)
		},
	)
}

// handleFlowSubmission is the handler for advancing a flow by one step.
func handleFlowSubmission(
	ctx context.Context,
	flows *authflow.Manager,
	input *FlowSubmissionRequest,
) (*FlowSubmissionResponse, error) {
	result, err := flows.Submit(ctx, input.Flow, input.Body.Index, input.Body.Value)
	if err != nil {
		return nil, err
	}

	resp := &FlowSubmissionResponse{}
	resp.Body.Completed = result.Completed
	if result.Next != nil {
		next, err := domainPrompt(*result.Next).ToAPIType()
		if err != nil {
			return nil, err
		}
		resp.Body.Next = &next
	}

	return resp, nil
}

// handleFlowCancel is the handler for dropping an in-flight flow.
func handleFlowCancel(flows *authflow.Manager, flowID string) (*FlowCancelResponse, error) {
	resp := &FlowCancelResponse{}
	resp.Body.Cancelled = flows.Cancel(flowID)

	return resp, nil
}
