package daemon

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/mcpmux/internal/errors"
)

// TestMapError ensures every domain error maps to the intended HTTP status.
// Keep this in sync with internal/errors/errors.go.
func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "bad request",
			err:        errors.ErrBadRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "tool arguments invalid",
			err:        errors.ErrToolArgsInvalid,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "flow with no requirements",
			err:        errors.ErrFlowEmptyRequirements,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "server not found",
			err:        errors.ErrServerNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "tools not found",
			err:        errors.ErrToolsNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "flow not found",
			err:        errors.ErrFlowNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "health not tracked",
			err:        errors.ErrHealthNotTracked,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "tool forbidden",
			err:        errors.ErrToolForbidden,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "credentials missing",
			err:        errors.ErrCredentialsMissing,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "flow index mismatch",
			err:        errors.ErrFlowIndexMismatch,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "tool list failed",
			err:        errors.ErrToolListFailed,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "tool call failed",
			err:        errors.ErrToolCallFailed,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "session init failed",
			err:        errors.ErrSessionInit,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "wrapped domain error",
			err:        fmt.Errorf("calling tool: %w", errors.ErrToolCallFailed),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown error",
			err:        stdErrors.New("something unexpected"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "config invalid is not a request-level error",
			err:        errors.ErrConfigInvalid,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			statusErr := mapError(hclog.NewNullLogger(), tc.err)
			require.Equal(t, tc.wantStatus, statusErr.GetStatus())
		})
	}
}

func TestNewAPIServer_InvalidDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewAPIServer(APIDependencies{Addr: "not-an-address"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid dependencies")
}
