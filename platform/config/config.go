// Package config loads application configuration from the environment.
// Consumers depend on the narrow accessor interfaces below rather than the
// full Config struct, so each component sees only the settings it needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig exposes database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig exposes HTTP server settings.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig exposes background task queue settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GeminiConfig exposes language model settings.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
}

// MapsConfig exposes maps provider settings.
type MapsConfig interface {
	GetMapsAPIKey() string
	GetMapsRegion() string
}

// VoiceConfig exposes telephony provider settings.
type VoiceConfig interface {
	GetVoiceAPIKey() string
	GetVoicePhoneNumberID() string
	GetVoiceWebhookSecret() string
	GetServerBaseURL() string
	GetCallTimeout() time.Duration
	GetCallConcurrency() int
}

// LogisticsConfig exposes delivery provider settings.
type LogisticsConfig interface {
	GetLogisticsBaseURL() string
	GetLogisticsAPIKey() string
	GetServerBaseURL() string
	GetMaxDeliveryRetries() int
}

// WebDealsConfig exposes web deal search settings.
type WebDealsConfig interface {
	GetWebDealsTimeout() time.Duration
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env          string
	HTTPAddr     string
	DatabaseURL  string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueue       string
	AsynqWorkers     int
	CORSAllowAll bool
	CORSOrigins  []string

	ServerBaseURL string

	GeminiAPIKey string
	GeminiModel  string

	MapsAPIKey string
	MapsRegion string

	VoiceAPIKey        string
	VoicePhoneNumberID string
	VoiceWebhookSecret string
	CallTimeout        time.Duration
	CallConcurrency    int

	LogisticsBaseURL   string
	LogisticsAPIKey    string
	MaxDeliveryRetries int

	WebDealsTimeout time.Duration
}

// Load reads configuration from the environment (and a .env file if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:          getEnv("APP_ENV", "development"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:       getEnv("ASYNQ_QUEUE", "tickets"),
		AsynqWorkers:     getEnvInt("ASYNQ_CONCURRENCY", 20),
		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		ServerBaseURL: strings.TrimRight(getEnv("SERVER_BASE_URL", ""), "/"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		MapsRegion: getEnv("MAPS_REGION", "in"),

		VoiceAPIKey:        getEnv("VOICE_API_KEY", ""),
		VoicePhoneNumberID: getEnv("VOICE_PHONE_NUMBER_ID", ""),
		VoiceWebhookSecret: getEnv("VOICE_WEBHOOK_SECRET", ""),
		CallTimeout:        getEnvDuration("CALL_TIMEOUT", 5*time.Minute),
		CallConcurrency:    getEnvInt("CALL_CONCURRENCY", 8),

		LogisticsBaseURL:   strings.TrimRight(getEnv("LOGISTICS_BASE_URL", ""), "/"),
		LogisticsAPIKey:    getEnv("LOGISTICS_API_KEY", ""),
		MaxDeliveryRetries: getEnvInt("MAX_DELIVERY_RETRIES", 2),

		WebDealsTimeout: getEnvDuration("WEB_DEALS_TIMEOUT", 3*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqWorkers }

func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string  { return c.GeminiModel }

func (c *Config) GetMapsAPIKey() string { return c.MapsAPIKey }
func (c *Config) GetMapsRegion() string { return c.MapsRegion }

func (c *Config) GetVoiceAPIKey() string         { return c.VoiceAPIKey }
func (c *Config) GetVoicePhoneNumberID() string  { return c.VoicePhoneNumberID }
func (c *Config) GetVoiceWebhookSecret() string  { return c.VoiceWebhookSecret }
func (c *Config) GetServerBaseURL() string       { return c.ServerBaseURL }
func (c *Config) GetCallTimeout() time.Duration  { return c.CallTimeout }
func (c *Config) GetCallConcurrency() int        { return c.CallConcurrency }

func (c *Config) GetLogisticsBaseURL() string { return c.LogisticsBaseURL }
func (c *Config) GetLogisticsAPIKey() string  { return c.LogisticsAPIKey }
func (c *Config) GetMaxDeliveryRetries() int  { return c.MaxDeliveryRetries }

func (c *Config) GetWebDealsTimeout() time.Duration { return c.WebDealsTimeout }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
