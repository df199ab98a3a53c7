package daemon

import (
	"fmt"
	"time"

	"github.com/agentfleet/mcpmux/internal/authflow"
	"github.com/agentfleet/mcpmux/internal/contracts"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// FlowOptions contains functional options for the credential flow manager.
	FlowOptions []authflow.Option

	// CredentialStore is the store collected secrets are handed to and
	// sessions are gated on. Defaults to the in-memory store.
	CredentialStore contracts.CredentialStore

	// HealthCheckInterval specifies how often to ping live sessions.
	HealthCheckInterval time.Duration

	// HealthCheckTimeout specifies maximum time to wait for ping responses.
	HealthCheckTimeout time.Duration
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := Options{
		HealthCheckInterval: DefaultHealthCheckInterval(),
		HealthCheckTimeout:  DefaultHealthCheckTimeout(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithFlowOptions configures credential flow manager options.
func WithFlowOptions(flowOpts ...authflow.Option) Option {
	return func(o *Options) error {
		o.FlowOptions = flowOpts
		return nil
	}
}

// WithCredentialStore configures a credential store, replacing the default
// in-memory one.
func WithCredentialStore(store contracts.CredentialStore) Option {
	return func(o *Options) error {
		if store == nil {
			return fmt.Errorf("credential store cannot be nil")
		}
		o.CredentialStore = store
		return nil
	}
}

// WithHealthCheckInterval configures how often to ping live sessions.
func WithHealthCheckInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("health check interval must be positive, got %v", interval)
		}
		o.HealthCheckInterval = interval
		return nil
	}
}

// WithHealthCheckTimeout configures maximum time to wait for session ping responses.
func WithHealthCheckTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("health check timeout must be positive, got %v", timeout)
		}
		o.HealthCheckTimeout = timeout
		return nil
	}
}

// DefaultHealthCheckInterval is the default interval for session health checks.
func DefaultHealthCheckInterval() time.Duration {
	return 10 * time.Second
}

// DefaultHealthCheckTimeout is the default timeout for session ping responses.
func DefaultHealthCheckTimeout() time.Duration {
	return 3 * time.Second
}
