package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from defaults, an
// optional YAML file and environment overrides, in that order
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Guard    GuardConfig    `yaml:"guard"`
	Memory   MemoryConfig   `yaml:"memory"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Persona is the system prompt placed ahead of every conversation.
	// Empty means the built-in Otic Foundation persona.
	Persona string `yaml:"persona"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port string `yaml:"port"`

	// SweepIntervalSeconds is how often idle guard and history state is
	// evicted; IdleTTLSeconds is how long a key may sit unused first
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	IdleTTLSeconds       int `yaml:"idle_ttl_seconds"`
}

// ProviderConfig configures the completion provider
type ProviderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float32 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// GuardConfig configures the admission pipeline
type GuardConfig struct {
	RateLimit         int `yaml:"rate_limit"`
	RateWindowSeconds int `yaml:"rate_window_seconds"`
	ResponseBudget    int `yaml:"response_budget"`

	// ExtraBlockedPhrases extends the built-in blocklist
	ExtraBlockedPhrases []string `yaml:"extra_blocked_phrases"`
}

// MemoryConfig configures the conversation store
type MemoryConfig struct {
	// Backend selects the store implementation: "memory" or "redis"
	Backend string `yaml:"backend"`

	MaxTurns int `yaml:"max_turns"`

	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 "8000",
			SweepIntervalSeconds: 600,
			IdleTTLSeconds:       3600,
		},
		Provider: ProviderConfig{
			MaxTokens:      1024,
			Temperature:    0.7,
			TimeoutSeconds: 30,
		},
		Guard: GuardConfig{
			RateLimit:         10,
			RateWindowSeconds: 60,
			ResponseBudget:    1200,
		},
		Memory: MemoryConfig{
			Backend:         "memory",
			MaxTurns:        10,
			SessionTTLHours: 24,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. A non-empty path points at a YAML file
// layered over the defaults; PORT and REDIS_ADDR environment variables
// win over both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if !isValidFilePath(path) {
			return nil, fmt.Errorf("invalid config file path")
		}
		data, err := os.ReadFile(path) // #nosec G304 - path validated above
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Memory.RedisAddr = addr
		cfg.Memory.Backend = "redis"
	}

	return cfg, nil
}

// APIKey reads the provider credential from the environment. The service
// must not start without it: requests would only fail later, at the
// first provider call.
func APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	if key == "" {
		return "", fmt.Errorf("GROQ_API_KEY is not set")
	}
	return key, nil
}

// RateWindow returns the rate limit window as a duration
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Guard.RateWindowSeconds) * time.Second
}

// ProviderTimeout returns the provider call timeout as a duration
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// SweepInterval returns how often idle state is evicted
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Server.SweepIntervalSeconds) * time.Second
}

// IdleTTL returns how long state may sit unused before eviction
func (c *Config) IdleTTL() time.Duration {
	return time.Duration(c.Server.IdleTTLSeconds) * time.Second
}

// SessionTTL returns the Redis session key lifetime
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Memory.SessionTTLHours) * time.Hour
}

// isValidFilePath checks if a file path is valid and safe
func isValidFilePath(path string) bool {
	if path == "" {
		return false
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return false
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return false
	}

	return !strings.HasPrefix(absPath, "/proc") && !strings.HasPrefix(absPath, "/sys")
}
