// Package config loads Memento's runtime configuration from environment
// variables, with an optional file-based overlay handled by viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfig reads environment variables under an optional prefix.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a new environment configuration loader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// GetString retrieves a string value from environment with optional default.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetInt retrieves an integer value from environment with optional default.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// HistoryConfig controls the temporal history layer.
type HistoryConfig struct {
	Enabled bool
	CheckpointHops int
	IncidentEnabled bool
	IncidentHops int
	EmbedVersions bool
}

// RetryConfig controls the coordinator's retry schedule.
type RetryConfig struct {
	MaxAttempts int
	Delay time.Duration
}

// SyncConfig controls per-operation fan-out.
type SyncConfig struct {
	MaxConcurrency int
	BatchSize int
}

// StoreConfig carries connection settings for the three backing stores plus
// the optional KV cache and operation-metrics store.
type StoreConfig struct {
	Neo4jURL string
	Neo4jUser string
	Neo4jPassword string

	QdrantAddr string

	OpenAIAPIKey string
	OpenAIModel string

	RedisURL string

	PostgresURL string

	BoltPath string
}

// Config is the fully resolved Memento configuration.
type Config struct {
	History HistoryConfig
	Retry RetryConfig
	Sync SyncConfig
	Store StoreConfig

	LogLevel string
	LogFormat string
}

// Load reads MEMENTO_* and HISTORY_* environment variables into a Config. If
// configPath is non-empty, viper reads it and each of its keys fills the
// matching environment variable only where that variable is unset, before
// values are read, matching the precedence the teacher's
// cli package establishes (flags > env > file > defaults), minus the flag
// layer which the cli package binds separately.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		for _, key := range viper.AllKeys() {
			envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			if os.Getenv(envKey) == "" {
				if v := viper.GetString(key); v != "" {
					os.Setenv(envKey, v)
				}
			}
		}
	}

	env := NewEnvConfig("")
	hops := clamp(env.GetInt("HISTORY_CHECKPOINT_HOPS", 2), 1, 5)
	incidentHops := clamp(env.GetInt("HISTORY_INCIDENT_HOPS", 3), 1, 5)

	cfg := &Config{
		History: HistoryConfig{
			Enabled: env.GetBool("HISTORY_ENABLED", true),
			CheckpointHops: hops,
			IncidentEnabled: env.GetBool("HISTORY_INCIDENT_ENABLED", true),
			IncidentHops: incidentHops,
			EmbedVersions: env.GetBool("HISTORY_EMBED_VERSIONS", false),
		},
		Retry: RetryConfig{
			MaxAttempts: env.GetInt("maxRetryAttempts", 3),
			Delay: env.GetDuration("retryDelay", 5*time.Second),
		},
		Sync: SyncConfig{
			MaxConcurrency: env.GetInt("maxConcurrency", 4),
			BatchSize: env.GetInt("batchSize", 10),
		},
		Store: StoreConfig{
			Neo4jURL: env.GetString("MEMENTO_NEO4J_URL", "bolt://localhost:7687"),
			Neo4jUser: env.GetString("MEMENTO_NEO4J_USER", "neo4j"),
			Neo4jPassword: env.GetString("MEMENTO_NEO4J_PASSWORD", ""),
			QdrantAddr: env.GetString("MEMENTO_QDRANT_ADDR", "localhost:6334"),
			OpenAIAPIKey: env.GetString("MEMENTO_OPENAI_API_KEY", ""),
			OpenAIModel: env.GetString("MEMENTO_OPENAI_EMBED_MODEL", "text-embedding-3-small"),
			RedisURL: env.GetString("MEMENTO_REDIS_URL", ""),
			PostgresURL: env.GetString("MEMENTO_POSTGRES_URL", ""),
			BoltPath: env.GetString("MEMENTO_BOLT_PATH", "memento-operations.db"),
		},
		LogLevel: env.GetString("MEMENTO_LOG_LEVEL", "info"),
		LogFormat: env.GetString("MEMENTO_LOG_FORMAT", "text"),
	}
	return cfg, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
