package config

import (
	"fmt"
	"os"
	"time"
)

// EmbeddingConfig defines the embedding provider of one domain.
type EmbeddingConfig struct {
	Name       string        `mapstructure:"name"`        // domain name, used in logs and errors
	Provider   string        `mapstructure:"provider"`    // "openai", "jina"
	Model      string        `mapstructure:"model"`       // model name/ID
	APIKey     string        `mapstructure:"api_key"`     // set directly or via APIKeyEnv
	APIKeyEnv  string        `mapstructure:"api_key_env"` // environment variable holding the key
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"` // vector length, fixed per collection
	Collection string        `mapstructure:"collection"` // Qdrant collection of the domain
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ResolveEnvVars loads APIKey from APIKeyEnv when it is not set directly.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// Validate checks that the embedding configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *EmbeddingConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("embedding config: name is required")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding %q: model is required", c.Name)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding %q: dimensions must be positive", c.Name)
	}
	if c.Collection == "" {
		return fmt.Errorf("embedding %q: collection is required", c.Name)
	}

	switch c.Provider {
	case "openai", "jina":
	default:
		return fmt.Errorf("embedding %q: unknown provider %q", c.Name, c.Provider)
	}
	return nil
}

// ValidateWithAPIKey also requires the API key. Use it when the provider
// will actually be called.
func (c *EmbeddingConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Name, c.APIKeyEnv)
	}
	return nil
}
