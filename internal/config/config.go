package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultLLMBaseURL = "https://api.groq.com/openai/v1"

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL      string
	LLMAPIKey       string
	PersonaFile     string
	AllowedOrigins  []string
	BackendURL      string
	APIPort         string
	MaxMessageBytes int64
	MetricsEnabled  bool
	LogLevel        slog.Level
	LogFormat       string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:     getEnv("LLM_BASE_URL", defaultLLMBaseURL),
		LLMAPIKey:      getEnv("GROQ_API_KEY", ""),
		PersonaFile:    getEnv("PERSONA_FILE", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:3000"),
		APIPort:        getEnv("PORT", "3000"),
	}

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}

	maxBytes, err := strconv.ParseInt(getEnv("MAX_MESSAGE_BYTES", "65536"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("MAX_MESSAGE_BYTES must be a valid integer: %w", err)
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("MAX_MESSAGE_BYTES must be greater than 0")
	}
	cfg.MaxMessageBytes = maxBytes

	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("METRICS_ENABLED must be a boolean: %w", err)
	}
	cfg.MetricsEnabled = metricsEnabled

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %w", err)
	}

	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
