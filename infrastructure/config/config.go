// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	// Environment is one of development, staging, production
	Environment string

	// HTTP server
	ServerAddress   string
	ShutdownTimeout time.Duration

	// Persistence
	TableName string
	AWSRegion string

	// Messaging
	EventBusName string

	// Auth
	JWTSigningMethod string
	JWTSecret        string
	JWTPublicKey     string
	JWTIssuer        string
	JWTAudience      []string

	// Rate limiting
	IPRateLimitPerMinute   int
	UserRateLimitPerMinute int

	// Completion service
	CompletionEndpoint string
	CompletionAPIKey   string
	CompletionTimeout  time.Duration

	// Observability
	MetricsEnabled bool
	TracingEnabled bool
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		TableName: getEnv("TABLE_NAME", "loomchat"),
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		EventBusName: getEnv("EVENT_BUS_NAME", "loomchat-events"),

		JWTSigningMethod: getEnv("JWT_SIGNING_METHOD", "HS256"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTPublicKey:     getEnv("JWT_PUBLIC_KEY", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "loomchat"),
		JWTAudience:      getEnvList("JWT_AUDIENCE", []string{"loomchat-api"}),

		IPRateLimitPerMinute:   getEnvInt("IP_RATE_LIMIT_PER_MINUTE", 300),
		UserRateLimitPerMinute: getEnvInt("USER_RATE_LIMIT_PER_MINUTE", 120),

		CompletionEndpoint: getEnv("COMPLETION_ENDPOINT", ""),
		CompletionAPIKey:   getEnv("COMPLETION_API_KEY", ""),
		CompletionTimeout:  getEnvDuration("COMPLETION_TIMEOUT", 120*time.Second),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}
}

// Validate checks invariants that only matter outside development
func (c *Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}

	if c.JWTSigningMethod == "HS256" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production with HS256")
	}
	if c.JWTSigningMethod == "RS256" && c.JWTPublicKey == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY is required in production with RS256")
	}
	if c.TableName == "" {
		return fmt.Errorf("TABLE_NAME is required in production")
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsLambda reports whether the service runs inside AWS Lambda
func (c *Config) IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
