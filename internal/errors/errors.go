// Package errors defines domain-level errors used throughout the application.
// These errors represent business logic failures and are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrConfigInvalid indicates that the server catalog file is malformed or fails validation.
	// This is fatal at load time and is never produced per-call.
	ErrConfigInvalid = errors.New("invalid catalog configuration")

	// ErrServerNotFound indicates that the requested server does not exist in the catalog,
	// or is not enabled for the requesting user.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrSessionInit indicates that a server subprocess failed to start or complete its handshake.
	// Callers recover by treating the server as unavailable for that user; the failure is
	// contained at the session boundary and never surfaced through the tool-listing path.
	ErrSessionInit = errors.New("session initialization failed")

	// ErrToolsNotFound indicates that no tools are available for the specified session.
	// Recommended to map to HTTP 404 Not Found.
	ErrToolsNotFound = errors.New("tools not found")

	// ErrToolForbidden indicates that the requested tool is not advertised by the session.
	// Recommended to map to HTTP 403 Forbidden.
	ErrToolForbidden = errors.New("tool not allowed")

	// ErrToolListFailed indicates that listing tools from a live session failed or timed out.
	// Callers recover by returning an empty tool set; the handle's cache is left unset so a
	// later call retries.
	ErrToolListFailed = errors.New("tool list failed")

	// ErrToolCallFailed indicates that calling a tool on a live session failed or timed out.
	// Unlike listing, this is propagated to the immediate caller, since a tool call is an
	// explicit user action and silent failure would be misleading.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrToolArgsInvalid indicates that the supplied tool arguments do not satisfy the
	// tool's declared input schema.
	// Recommended to map to HTTP 400 Bad Request.
	ErrToolArgsInvalid = errors.New("tool arguments invalid")

	// ErrCredentialsMissing indicates that the user has not yet supplied every required
	// credential for the server, so no session can be established.
	// Recommended to map to HTTP 409 Conflict.
	ErrCredentialsMissing = errors.New("required credentials missing")

	// ErrFlowNotFound indicates that a credential collection flow does not exist.
	// A completed, cancelled, or expired flow is indistinguishable from one that never
	// existed; this is an expected race, not an exceptional condition.
	// Recommended to map to HTTP 404 Not Found.
	ErrFlowNotFound = errors.New("credential flow not found")

	// ErrFlowIndexMismatch indicates an out-of-order or replayed flow submission.
	// The flow state is left unchanged.
	// Recommended to map to HTTP 409 Conflict.
	ErrFlowIndexMismatch = errors.New("credential flow step mismatch")

	// ErrFlowEmptyRequirements indicates an attempt to start a flow with nothing to collect.
	// Recommended to map to HTTP 400 Bad Request.
	ErrFlowEmptyRequirements = errors.New("credential flow has no requirements")

	// ErrHealthNotTracked indicates that health monitoring is not enabled for the specified session.
	// Recommended to map to HTTP 404 Not Found.
	ErrHealthNotTracked = errors.New("session health is not being tracked")
)
