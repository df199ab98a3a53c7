package authflow

import (
	"fmt"
	"time"
)

const (
	// DefaultTTL is how long a flow may sit without completing before it
	// becomes eligible for eviction.
	DefaultTTL = 10 * time.Minute
)

// Option configures a flow Manager.
type Option func(*options) error

type options struct {
	ttl time.Duration
	now func() time.Time
}

// NewOptions returns default options with the given overrides applied.
func NewOptions(opt ...Option) (options, error) {
	opts := defaultOptions()
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return options{}, err
		}
	}
	return opts, nil
}

func defaultOptions() options {
	return options{
		ttl: DefaultTTL,
		now: time.Now,
	}
}

// WithTTL overrides how long a flow may remain incomplete before eviction.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl <= 0 {
			return fmt.Errorf("flow TTL must be positive, got %s", ttl)
		}
		o.ttl = ttl
		return nil
	}
}

// WithClock overrides the time source, e.g. for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}
