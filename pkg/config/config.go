// Package config loads process configuration from the environment,
// falling back to documented defaults on anything missing or malformed.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the process needs at
// startup.
type Config struct {
	Env       string
	LogLevel  string
	RedisHost string
	RedisPort int
	Version   string

	// QueueBackend selects the Queue implementation: "redis" (default) or
	// "gcppubsub".
	QueueBackend       string
	GCPProjectID       string
	GCPPubSubTopic     string
	GCPCredentialsPath string
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:                getEnv("ENV", "dev"),
		LogLevel:           getLogLevel(),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnvInt("REDIS_PORT", 6379),
		Version:            getEnv("VERSION", "experimental"),
		QueueBackend:       getEnv("QUEUE_BACKEND", "redis"),
		GCPProjectID:       os.Getenv("GCP_PROJECT_ID"),
		GCPPubSubTopic:     getEnv("GCP_PUBSUB_TOPIC", "emails"),
		GCPCredentialsPath: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
}

// IsDev reports whether fixture loading should run at startup.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getLogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if validLogLevels[level] {
		return level
	}
	return "info"
}
