package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. API Key validation (required for all AI operations)
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI, "":
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: gemini, googleai, openai",
			ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Agent loop validation
	if c.MaxToolRounds < 1 || c.MaxToolRounds > 20 {
		return fmt.Errorf("%w: max_tool_rounds must be between 1 and 20, got %d",
			ErrInvalidMaxToolRounds, c.MaxToolRounds)
	}

	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		return fmt.Errorf("%w: retry_max_attempts must be between 1 and 10, got %d",
			ErrInvalidRetry, c.RetryMaxAttempts)
	}

	if c.RetryBaseMs < 1 {
		return fmt.Errorf("%w: retry_base_ms must be positive, got %d", ErrInvalidRetry, c.RetryBaseMs)
	}

	if c.RetryCapMs < c.RetryBaseMs {
		return fmt.Errorf("%w: retry_cap_ms (%d) must be >= retry_base_ms (%d)",
			ErrInvalidRetry, c.RetryCapMs, c.RetryBaseMs)
	}

	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: requests_per_minute cannot be negative, got %d",
			ErrInvalidRetry, c.RequestsPerMinute)
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Warn if using the default dev password (but don't block, user might be in dev)
	if c.PostgresPassword == "concierge_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// 5. PostgreSQL SSL mode validation
	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
