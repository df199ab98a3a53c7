package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentfleet/mcpmux/internal/session"
)

// UserSessionsDeleteRequest represents the incoming request for terminating a
// user's sessions.
type UserSessionsDeleteRequest struct {
	User string `doc:"ID of the user" example:"U024BE7LH" path:"user"`
}

// UserSessionsDeleteResponse represents the wrapped API response for session
// termination.
type UserSessionsDeleteResponse struct {
	Body struct {
		// Terminated is the number of sessions that were torn down.
		Terminated int `doc:"Number of sessions terminated" json:"terminated"`
	}
}

func registerSessionRoutes(parentAPI huma.API, sessions *session.Registry) {
	tags := []string{"Sessions"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "deleteUserSessions",
			Method:      http.MethodDelete,
			Path:        "/{user}/sessions",
			Summary:     "Terminate every live session belonging to a user",
			Description: "Subsequent requests re-establish sessions on demand from stored credentials.",
			Tags:        tags,
		},
		func(ctx context.Context, input *UserSessionsDeleteRequest) (*UserSessionsDeleteResponse, error) {
			return handleUserSessionsDelete(sessions, input.User)
		},
	)
}

// handleUserSessionsDelete is the handler for terminating a user's sessions.
func handleUserSessionsDelete(sessions *session.Registry, userID string) (*UserSessionsDeleteResponse, error) {
	count := len(sessions.ListForUser(userID))
	sessions.RemoveForUser(userID)

	resp := &UserSessionsDeleteResponse{}
	resp.Body.Terminated = count

	return resp, nil
}
