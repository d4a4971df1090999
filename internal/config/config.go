package config

import (
	"os"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (tokens are minted by the identity service; we only verify)
	JWTSecret string

	// Content registry collaborator
	ContentRegistryURL     string
	ContentRegistryToken   string
	ContentRegistryTimeout time.Duration

	// Scoring oracle collaborator (empty URL = local heuristic scorer)
	ScoringOracleURL     string
	ScoringOracleAPIKey  string
	ScoringOracleTimeout time.Duration

	// Notification sink (empty = dropped)
	NotifyWebhookURL     string
	NotifyWebhookTimeout time.Duration

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string

	// App registry
	AppsConfigPath string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "moderation_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ContentRegistryURL:     getEnv("CONTENT_REGISTRY_URL", "http://localhost:8081"),
		ContentRegistryToken:   getEnv("CONTENT_REGISTRY_TOKEN", ""),
		ContentRegistryTimeout: parseDuration(getEnv("CONTENT_REGISTRY_TIMEOUT", "5s")),

		ScoringOracleURL:     getEnv("SCORING_ORACLE_URL", ""),
		ScoringOracleAPIKey:  getEnv("SCORING_ORACLE_API_KEY", ""),
		ScoringOracleTimeout: parseDuration(getEnv("SCORING_ORACLE_TIMEOUT", "10s")),

		NotifyWebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookTimeout: parseDuration(getEnv("NOTIFY_WEBHOOK_TIMEOUT", "5s")),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		AppsConfigPath: getEnv("APPS_CONFIG_PATH", "apps.json"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
