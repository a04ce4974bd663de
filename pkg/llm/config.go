package llm

import (
	"time"

	"spyglass/pkg/config"
)

// Config holds connection settings for an OpenAI-compatible completions
// endpoint. Enabled is false when no API URL is configured; callers should
// then skip narrative generation entirely.
type Config struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LoadConfig reads LLM settings from the environment.
func LoadConfig() Config {
	return Config{
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		APIKey:    config.GetEnv("LLM_API_KEY", ""),
		Model:     config.GetEnv("LLM_MODEL", "gpt-4o-mini"),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 1000),
		Timeout:   time.Duration(config.GetEnvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// Enabled reports whether narrative generation is configured.
func (c Config) Enabled() bool {
	return c.APIURL != ""
}
