// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port string

	// Durable store.
	StoreType     string
	StoreDSN      string
	StoreUser     string
	StorePassword string
	StoreDBName   string

	// Session cache.
	CacheType string
	CacheURL  string

	// LLM provider. The base URL defaults to the Groq OpenAI-compatible
	// endpoint.
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Speech providers. Empty API key disables voice features.
	SpeechAPIKey string

	// Knowledge layer. Empty store type disables topic suggestions.
	VectorStore string
	QdrantHost  string
	QdrantPort  int
	VectorDSN   string

	PromptPath    string
	RetentionCap  int64
	AudioDir      string
	AudioTTL      time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		StoreType:     getEnv("STORE_TYPE", "sqlite"),
		StoreDSN:      getEnv("STORE_DSN", "./data/lingua.db"),
		StoreUser:     getEnv("STORE_USER", ""),
		StorePassword: getEnv("STORE_PASSWORD", ""),
		StoreDBName:   getEnv("STORE_DB_NAME", ""),

		CacheType: getEnv("CACHE_TYPE", "inmemory"),
		CacheURL:  getEnv("CACHE_URL", "redis://localhost:6379/0"),

		LLMAPIKey:  getEnv("GROQ_API_KEY", os.Getenv("OPENAI_API_KEY")),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:   getEnv("LLM_MODEL", "llama3-70b-8192"),

		SpeechAPIKey: getEnv("OPENAI_API_KEY", ""),

		VectorStore: getEnv("VECTOR_STORE", ""),
		QdrantHost:  getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:  getEnvInt("QDRANT_PORT", 6334),
		VectorDSN:   getEnv("VECTOR_DSN", ""),

		PromptPath:    getEnv("PROMPT_PATH", "base_prompt.txt"),
		RetentionCap:  int64(getEnvInt("MAX_CONVERSATIONS", 100)),
		AudioDir:      getEnv("AUDIO_DIR", "./data/audio"),
		AudioTTL:      time.Duration(getEnvInt("AUDIO_TTL_SECONDS", 3600)) * time.Second,
		SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 3600)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.StoreType == "" {
		return fmt.Errorf("STORE_TYPE cannot be empty")
	}
	if c.CacheType == "" {
		return fmt.Errorf("CACHE_TYPE cannot be empty")
	}
	if c.AudioTTL <= 0 {
		return fmt.Errorf("AUDIO_TTL_SECONDS must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
