package script

import (
	"fmt"
	"net/url"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/runner"
)

// Script is the nginx scenario. It implements runner.Script.
type Script struct {
	target  string
	options *config.Options
}

// Option configures a Script.
type Option func(*Script)

// WithTarget replaces the requested URL.
func WithTarget(target string) Option {
	return func(s *Script) {
		if target != "" {
			s.target = target
		}
	}
}

// WithOptions replaces the scenario configuration, e.g. with one loaded
// from an options file.
func WithOptions(opts *config.Options) Option {
	return func(s *Script) {
		if opts != nil {
			s.options = opts.Clone()
		}
	}
}

// New creates the script.
func New(opts ...Option) *Script {
	s := &Script{
		target:  DefaultTarget,
		options: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options returns a copy of the scenario configuration.
func (s *Script) Options() *config.Options {
	return s.options.Clone()
}

// ValidateTarget checks that raw is an absolute http or https URL.
func ValidateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid target %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid target %q: host is required", raw)
	}
	return nil
}

var _ runner.Script = (*Script)(nil)
