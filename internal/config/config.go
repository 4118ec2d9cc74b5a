// Package config provides the runtime configuration for the policy
// evaluation core: the knobs spec.md leaves to the host rather than
// specifying itself (max reference chain depth, per-request decision cache
// size, XPath availability, default combining algorithm for top-level
// requests).
package config

// PDPConfig is the top-level configuration for the policy decision point
// core.
type PDPConfig struct {
	// MaxReferenceChainDepth bounds how many PolicyIdReference/
	// PolicySetIdReference hops a single request may follow before
	// evaluation fails with ErrReferenceChainTooDeep (spec.md §4.5).
	MaxReferenceChainDepth int `yaml:"max_reference_chain_depth" mapstructure:"max_reference_chain_depth" validate:"required,min=1,max=1000"`

	// DecisionCacheSize is a per-request memo size setting. It is only
	// defaulted and validated: nothing in this module reads it, and the
	// core's two-slot-per-element memo (spec.md §4.4) is unbounded per
	// request.
	DecisionCacheSize int `yaml:"decision_cache_size" mapstructure:"decision_cache_size" validate:"required,min=1"`

	// XPathEnabled reports whether the wired ExpressionFactory supports
	// AttributeSelector/XPath (spec.md §4.7). The CEL-backed factory this
	// module ships always reports false; this flag exists so a host that
	// swaps in an XPath-capable factory can advertise it without touching
	// the core.
	XPathEnabled bool `yaml:"xpath_enabled" mapstructure:"xpath_enabled"`

	// DefaultCombiningAlgorithm names a combining algorithm ID, which
	// Validate checks against the default registry. It is only defaulted
	// and validated: no command in this module reads it when building an
	// evaluator.
	DefaultCombiningAlgorithm string `yaml:"default_combining_algorithm" mapstructure:"default_combining_algorithm" validate:"required"`

	// LogLevel sets the minimum slog level for the orchestration service
	// and CLI. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// MetricsAddr is a host:port address for a prometheus metrics
	// endpoint, e.g. "127.0.0.1:9090", validated when set. No command in
	// this module reads it or serves metrics over HTTP.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// DevMode enables verbose logging and relaxed defaults suited to local
	// experimentation with the evaluate/validate-policy CLI commands.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// SetDefaults applies sensible default values to fields left unset by the
// config file/environment.
func (c *PDPConfig) SetDefaults() {
	if c.MaxReferenceChainDepth == 0 {
		c.MaxReferenceChainDepth = 10
	}
	if c.DecisionCacheSize == 0 {
		c.DecisionCacheSize = 1000
	}
	if c.DefaultCombiningAlgorithm == "" {
		c.DefaultCombiningAlgorithm = "urn:oasis:names:tc:xacml:1.0:combining-algorithm:deny-overrides"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DevMode && c.LogLevel == "info" {
		c.LogLevel = "debug"
	}
}
