// Package llm provides the Gemini client used as the extraction oracle.
// Model names are configured per tier so a cheaper model can serve simple calls.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks such as page classification
	TierLite ModelTier = "lite"
	// TierStandard is for document extraction
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Config holds model selection and generation parameters
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-1.5-flash",
			TierStandard: "gemini-1.5-flash",
		},
		Temperature:     0.1,
		MaxOutputTokens: 4000,
	}
}

// NewConfig builds a Gemini configuration serving every tier with one model
func NewConfig(model string, temperature float32, maxOutputTokens int32) *Config {
	cfg := DefaultGeminiConfig()
	if model != "" {
		cfg.Models[TierLite] = model
		cfg.Models[TierStandard] = model
	}
	cfg.Temperature = temperature
	if maxOutputTokens > 0 {
		cfg.MaxOutputTokens = maxOutputTokens
	}
	return cfg
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:        c.Provider,
		Models:          make(map[ModelTier]string, len(c.Models)+1),
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
