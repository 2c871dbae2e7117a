// Package config loads the orchestrator's environment configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, sourced from the
// environment (optionally via a .env file) per spec.md §6.
type Config struct {
	Port        string
	Environment string

	Database        DatabaseConfig
	Redis           RedisConfig
	JWT             JWTConfig
	ObjectStore     ObjectStoreConfig
	PolicyEvaluator PolicyEvaluatorConfig
	Orchestrator    OrchestratorConfig
	Rails           RailsConfig
	Encryption      EncryptionConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// ObjectStoreConfig points at the bucket holding raw/processed evidence
// blobs and rendered audit reports (spec.md §6).
type ObjectStoreConfig struct {
	Bucket string
	Region string
}

// PolicyEvaluatorConfig is the external ACC policy decision service
// contract endpoint (spec.md §4.3, §6).
type PolicyEvaluatorConfig struct {
	URL     string
	Timeout time.Duration
}

// OrchestratorConfig tunes MCP's concurrency and retry model (spec.md §5).
type OrchestratorConfig struct {
	LineParallelism  int
	BatchParallelism int
	AgentTimeout     time.Duration
	RetryMax         int
	RetryBaseDelay   time.Duration
}

// RailsConfig controls the mock rail executor's determinism (spec.md §4.5).
type RailsConfig struct {
	SeedDeterministic bool
	Seed              int64
}

type EncryptionConfig struct {
	MasterKey string
}

// Load reads configuration from the environment, applying the defaults
// documented in spec.md §6. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "payment_orchestrator"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},

		ObjectStore: ObjectStoreConfig{
			Bucket: getEnv("OBJECT_STORE_BUCKET", "payment-evidence"),
			Region: getEnv("OBJECT_STORE_REGION", "ap-south-1"),
		},

		PolicyEvaluator: PolicyEvaluatorConfig{
			URL:     getEnv("POLICY_EVALUATOR_URL", "http://localhost:8181/v1/data/acc/policy/v1"),
			Timeout: getEnvAsDuration("POLICY_EVALUATOR_TIMEOUT", 10*time.Second),
		},

		Orchestrator: OrchestratorConfig{
			LineParallelism:  getEnvAsInt("ORCH_LINE_PARALLELISM", 8),
			BatchParallelism: getEnvAsInt("ORCH_BATCH_PARALLELISM", 4),
			AgentTimeout:     getEnvAsDuration("ORCH_AGENT_TIMEOUT", 15*time.Second),
			RetryMax:         getEnvAsInt("ORCH_RETRY_MAX", 3),
			RetryBaseDelay:   getEnvAsDuration("ORCH_RETRY_BASE_DELAY", 200*time.Millisecond),
		},

		Rails: RailsConfig{
			SeedDeterministic: getEnvAsBool("RAILS_SEED_DETERMINISTIC", false),
			Seed:              int64(getEnvAsInt("RAILS_SEED", 42)),
		},

		Encryption: EncryptionConfig{
			MasterKey: getEnv("MASTER_ENCRYPTION_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration for production deployments.
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Encryption.MasterKey == "" {
			return fmt.Errorf("MASTER_ENCRYPTION_KEY is required in production")
		}
		if !c.Rails.SeedDeterministic {
			log.Println("WARNING: RAILS_SEED_DETERMINISTIC is false in production; rail outcomes will not be reproducible")
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	return strings.Split(raw, sep)
}
