package analyzer

import (
	"github.com/formhawk/formhawk/internal/errors"
)

// Config holds the tunable knobs of the analysis engine. The zero value is
// usable: Normalize fills every unset field with a default. All thresholds
// are heuristics, not guarantees, and are exposed here rather than
// hard-coded so reviewers can tune them per engagement.
type Config struct {
	// TokenNamePatterns are lowercase substrings matched against field
	// names to recognize conventional CSRF token naming.
	TokenNamePatterns []string `json:"token_name_patterns" yaml:"token_name_patterns"`

	// MinTokenLength is the minimum acceptable token value length.
	MinTokenLength int `json:"min_token_length" yaml:"min_token_length"`

	// EntropyThreshold is the minimum Shannon estimate (bits per
	// character) for a token value to count as unpredictable.
	EntropyThreshold float64 `json:"entropy_threshold" yaml:"entropy_threshold"`

	// MutatingPathVerbs are path-segment tokens that mark a GET action as
	// state-changing.
	MutatingPathVerbs []string `json:"mutating_path_verbs" yaml:"mutating_path_verbs"`

	// PlaceholderValues are token values treated as static placeholders.
	// The empty string is always a placeholder regardless of this list.
	PlaceholderValues []string `json:"placeholder_values" yaml:"placeholder_values"`

	// KnownDefaultValues are framework example/default token values; a
	// byte-identical candidate value is flagged as static.
	KnownDefaultValues []string `json:"known_default_values" yaml:"known_default_values"`
}

// Default analysis settings.
const (
	DefaultMinTokenLength   = 16
	DefaultEntropyThreshold = 3.0
)

func defaultTokenNamePatterns() []string {
	return []string{
		"csrf",
		"xsrf",
		"token",
		"authenticity_token",
		"_token",
		"nonce",
		"antiforgery",
		"requestverificationtoken",
	}
}

func defaultMutatingPathVerbs() []string {
	return []string{"delete", "remove", "update", "edit", "create", "add"}
}

func defaultPlaceholderValues() []string {
	return []string{"true", "1", "changeme"}
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if len(c.TokenNamePatterns) == 0 {
		c.TokenNamePatterns = defaultTokenNamePatterns()
	}
	if c.MinTokenLength == 0 {
		c.MinTokenLength = DefaultMinTokenLength
	}
	if c.EntropyThreshold == 0 {
		c.EntropyThreshold = DefaultEntropyThreshold
	}
	if len(c.MutatingPathVerbs) == 0 {
		c.MutatingPathVerbs = defaultMutatingPathVerbs()
	}
	if len(c.PlaceholderValues) == 0 {
		c.PlaceholderValues = defaultPlaceholderValues()
	}
}

// Validate checks the configuration for structurally invalid values. It is
// called at configuration-load time, before any document is analyzed.
func (c *Config) Validate() error {
	if c.MinTokenLength < 0 {
		return errors.NewConfigError("min_token_length", "must not be negative")
	}
	if c.EntropyThreshold < 0 {
		return errors.NewConfigError("entropy_threshold", "must not be negative")
	}
	for _, p := range c.TokenNamePatterns {
		if p == "" {
			return errors.NewConfigError("token_name_patterns", "must not contain empty patterns")
		}
	}
	for _, v := range c.MutatingPathVerbs {
		if v == "" {
			return errors.NewConfigError("mutating_path_verbs", "must not contain empty verbs")
		}
	}
	return nil
}
