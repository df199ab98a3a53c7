package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentfleet/mcpmux/internal/contracts"
	"github.com/agentfleet/mcpmux/internal/domain"
)

const (
	HealthStatusOK          HealthStatus = "ok"
	HealthStatusTimeout     HealthStatus = "timeout"
	HealthStatusUnreachable HealthStatus = "unreachable"
	HealthStatusUnknown     HealthStatus = "unknown"
)

// DomainSessionHealth is a wrapper that allows receivers to be declared in the API package that deal with domain types.
type DomainSessionHealth domain.SessionHealth

// HealthStatus represents the current status of a live session when establishing its health.
type HealthStatus string

// SessionHealth is used to provide information about ongoing health checks performed on live sessions.
type SessionHealth struct {
	User           string       `json:"user"`
	Server         string       `json:"server"`
	Status         HealthStatus `json:"status"`
	Latency        *string      `json:"latency,omitempty"`
	LastChecked    *time.Time   `json:"lastChecked,omitempty"`
	LastSuccessful *time.Time   `json:"lastSuccessful,omitempty"`
}

// SessionsHealthResponse is the response for GET /health/sessions
type SessionsHealthResponse struct {
	Body struct {
		Sessions []SessionHealth `doc:"Tracked session health statuses" json:"sessions"`
	}
}

// SessionHealthRequest represents the incoming request for obtaining SessionHealth.
type SessionHealthRequest struct {
	User   string `doc:"ID of the user"     example:"U024BE7LH" path:"user"`
	Server string `doc:"Name of the server" example:"github"    path:"server"`
}

// SessionHealthResponse represents the wrapped API response for a SessionHealth.
type SessionHealthResponse struct {
	Body SessionHealth
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainSessionHealth) ToAPIType() (SessionHealth, error) {
	status, err := parseHealthStatus(d.Status)
	if err != nil {
		return SessionHealth{}, err
	}

	var latency *string
	if d.Latency != nil {
		s := d.Latency.String()
		latency = &s
	}
	return SessionHealth{
		User:           d.Key.UserID,
		Server:         d.Key.ServerName,
		Status:         status,
		Latency:        latency,
		LastChecked:    d.LastChecked,
		LastSuccessful: d.LastSuccessful,
	}, nil
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(routerAPI huma.API, monitor contracts.SessionHealthMonitor, apiPathPrefix string) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "listSessionsHealth",
			Method:      http.MethodGet,
			Path:        "/sessions",
			Summary:     "List the health statuses for all live sessions",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*SessionsHealthResponse, error) {
			return handleHealthSessions(monitor)
		},
	)

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getSessionHealth",
			Method:      http.MethodGet,
			Path:        "/sessions/{user}/{server}",
			Summary:     "Get the health status of one session",
			Tags:        tags,
		},
		func(ctx context.Context, input *SessionHealthRequest) (*SessionHealthResponse, error) {
			return handleHealthSession(monitor, domain.NewSessionKey(input.User, input.Server))
		},
	)
}

// handleHealthSessions is the handler for retrieving the current health for all tracked sessions.
func handleHealthSessions(monitor contracts.SessionHealthMonitor) (*SessionsHealthResponse, error) {
	sessions := monitor.List()

	slices.SortFunc(sessions, func(a, b domain.SessionHealth) int {
		return strings.Compare(a.Key.String(), b.Key.String())
	})

	apiSessions := make([]SessionHealth, 0, len(sessions))
	for _, s := range sessions {
		data, err := DomainSessionHealth(s).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiSessions = append(apiSessions, data)
	}

	resp := &SessionsHealthResponse{}
	resp.Body.Sessions = apiSessions

	return resp, nil
}

// handleHealthSession is the handler for retrieving the current health of the specified session.
func handleHealthSession(monitor contracts.SessionHealthMonitor, key domain.SessionKey) (*SessionHealthResponse, error) {
	health, err := monitor.Status(key)
	if err != nil {
		return nil, err
	}

	data, err := DomainSessionHealth(health).ToAPIType()
	if err != nil {
		return nil, err
	}

	response := SessionHealthResponse{}
	response.Body = data

	return &response, nil
}

func parseHealthStatus(status domain.HealthStatus) (HealthStatus, error) {
	switch status {
	case domain.HealthStatusOK:
		return HealthStatusOK, nil
	case domain.HealthStatusTimeout:
		return HealthStatusTimeout, nil
	case domain.HealthStatusUnreachable:
		return HealthStatusUnreachable, nil
	case domain.HealthStatusUnknown:
		return HealthStatusUnknown, nil
	default:
		return "", fmt.Errorf("unknown health status: %s", status)
	}
}
