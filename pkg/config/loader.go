// Package config loads service configuration from environment variables
// declared with `env` struct tags.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Option adjusts how variables are read.
type Option func(*env.Options)

// WithPrefix reads every variable as prefix + name.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) {
		o.Prefix = prefix
	}
}

// WithEnvironment reads variables from environ instead of the process environment.
func WithEnvironment(environ map[string]string) Option {
	return func(o *env.Options) {
		o.Environment = environ
	}
}

// Load parses variables into cfg, which must be a pointer to a struct.
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
