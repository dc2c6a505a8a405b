// Package config decodes and validates the LLM client configuration
// surface described in spec §4.3: provider, compatible, model, api_key,
// api_base, instructions, max_tokens, timeout_ms, thinking, stream, and
// extra_headers, with unknown keys rejected.
package config

import (
	"github.com/mitchellh/mapstructure"

	"github.com/corebridge/agentcore/agenterr"
)

// ThinkingConfig toggles extended-thinking mode and bounds its token budget.
type ThinkingConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	BudgetTokens int  `mapstructure:"budget_tokens"`
}

// LLMConfig is the full configuration surface of one LLM client instance
// (spec §4.3). Provider selects the registered Provider implementation by
// name; Compatible, when set, overrides Provider ("if both a provider and
// a compatible field are supplied, compatible wins").
type LLMConfig struct {
	Provider     string            `mapstructure:"provider"`
	Compatible   string            `mapstructure:"compatible"`
	Model        string            `mapstructure:"model"`
	APIKey       string            `mapstructure:"api_key"`
	APIBase      string            `mapstructure:"api_base"`
	Instructions string            `mapstructure:"instructions"`
	MaxTokens    int               `mapstructure:"max_tokens"`
	TimeoutMs    int               `mapstructure:"timeout_ms"`
	Thinking     ThinkingConfig    `mapstructure:"thinking"`
	Stream       bool              `mapstructure:"stream"`
	ExtraHeaders map[string]string `mapstructure:"extra_headers"`
}

// ResolvedProvider returns the provider name to route requests through:
// Compatible if set, else Provider.
func (c LLMConfig) ResolvedProvider() string {
	if c.Compatible != "" {
		return c.Compatible
	}
	return c.Provider
}

// Decode builds an LLMConfig from a raw map (e.g. parsed YAML/JSON),
// rejecting any key not named in the struct above, per spec §4.3's
// "unknown keys are rejected."
func Decode(raw map[string]any) (LLMConfig, error) {
	var cfg LLMConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, agenterr.Wrap(agenterr.InvalidArg, err, "build config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, agenterr.Wrap(agenterr.InvalidArg, err, "decode llm config")
	}
	return cfg, nil
}

// SetDefaults fills in provider-specific defaults for fields left zero,
// mirroring the reference repo's per-provider SetDefaults/Validate idiom.
func (c *LLMConfig) SetDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 60_000
	}
	if c.APIBase == "" {
		switch c.ResolvedProvider() {
		case "openai":
			c.APIBase = EnvOr("OPENAI_BASE_URL", "https://api.openai.com/v1")
		case "anthropic":
			c.APIBase = EnvOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com")
		}
	}
	if c.APIKey == "" {
		switch c.ResolvedProvider() {
		case "openai":
			c.APIKey = EnvOr("OPENAI_API_KEY", "")
		case "anthropic":
			c.APIKey = EnvOr("ANTHROPIC_API_KEY", "")
		}
	}
}

// Validate checks that the configuration is usable.
func (c LLMConfig) Validate() error {
	if c.ResolvedProvider() == "" {
		return agenterr.New(agenterr.InvalidArg, "provider (or compatible) is required")
	}
	if c.Model == "" {
		return agenterr.New(agenterr.InvalidArg, "model is required")
	}
	if c.MaxTokens < 0 {
		return agenterr.New(agenterr.InvalidArg, "max_tokens must be >= 0")
	}
	return nil
}
