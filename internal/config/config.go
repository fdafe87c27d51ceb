package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port     string
	Debug    bool
	LogLevel string

	// Database configuration
	DatabaseURL string

	// Facebook / Instagram Graph API
	GraphAPIURL     string
	PageAccessToken string
	FBPageID        string
	IGAccessToken   string
	IGUserID        string
	IGVerifyToken   string

	// X (Twitter) API v2
	XAPIURL          string
	XBearerToken     string
	XUserAccessToken string
	XUserID          string

	// LinkedIn REST API
	LinkedInAPIURL     string
	LinkedInToken      string
	LinkedInAPIVersion string
	LinkedInAuthorURN  string

	// Text-completion service
	LLMProvider  string // "openai" or "gemini"
	LLMAPIURL    string
	LLMAPIKey    string
	LLMModel     string
	LLMRPS       float64
	GeminiAPIKey string
	GeminiModel  string

	// Autonomous cycle
	CycleInterval       time.Duration
	AutonomousAutostart bool
	DigestSchedule      string // cron expression, empty disables the digest

	// Agent loop limits
	AgentMaxSteps   int
	AgentMaxInvalid int

	// Cycle report archive
	StorageAccount   string
	StorageContainer string
	ArchiveDir       string
	ArchiveKeep      int

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Debug:    getBoolEnv("DEBUG", false),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://mentions.db"),

		GraphAPIURL:     strings.TrimRight(getEnv("GRAPH_API_URL", "https://graph.facebook.com/v19.0"), "/"),
		PageAccessToken: getEnv("PAGE_ACCESS_TOKEN", ""),
		FBPageID:        getEnv("FB_PAGE_ID", ""),
		IGAccessToken:   getEnv("IG_ACCESS_TOKEN", getEnv("ACCESS_TOKEN", "")),
		IGUserID:        getEnv("IG_USER_ID", ""),
		IGVerifyToken:   getEnv("IG_VERIFY_TOKEN", ""),

		XAPIURL:          strings.TrimRight(getEnv("X_API_URL", "https://api.twitter.com"), "/"),
		XBearerToken:     getEnv("X_BEARER_TOKEN", ""),
		XUserAccessToken: getEnv("X_USER_ACCESS_TOKEN", ""),
		XUserID:          getEnv("X_USER_ID", ""),

		LinkedInAPIURL:     strings.TrimRight(getEnv("LINKEDIN_API_URL", "https://api.linkedin.com"), "/"),
		LinkedInToken:      getEnv("LINKEDIN_TOKEN", ""),
		LinkedInAPIVersion: getEnv("LINKEDIN_API_VERSION", "202405"),
		LinkedInAuthorURN:  getEnv("LINKEDIN_AUTHOR_URN", ""),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMAPIURL:    strings.TrimRight(getEnv("LLM_API_URL", "https://api.groq.com/openai/v1"), "/"),
		LLMAPIKey:    getEnv("LLM_API_KEY", getEnv("GROQ_API_KEY", "")),
		LLMModel:     getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMRPS:       getFloatEnv("LLM_RPS", 2),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		CycleInterval:       getDurationEnv("CYCLE_INTERVAL", 60*time.Second),
		AutonomousAutostart: getBoolEnv("AUTONOMOUS_AUTOSTART", true),
		DigestSchedule:      getEnv("DIGEST_SCHEDULE", "0 0 9 * * *"),

		AgentMaxSteps:   getIntEnv("AGENT_MAX_STEPS", 10),
		AgentMaxInvalid: getIntEnv("AGENT_MAX_INVALID", 2),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "cycle-reports"),
		ArchiveDir:       getEnv("ARCHIVE_DIR", ""),
		ArchiveKeep:      getIntEnv("ARCHIVE_KEEP", 500),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be empty")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	switch c.LLMProvider {
	case "openai":
		if c.LLMAPIURL == "" {
			return fmt.Errorf("LLM_API_URL is required when LLM_PROVIDER is 'openai'")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is 'gemini'")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be 'openai' or 'gemini'")
	}

	if c.LLMRPS <= 0 {
		return fmt.Errorf("LLM_RPS must be > 0")
	}

	if c.CycleInterval <= 0 {
		return fmt.Errorf("CYCLE_INTERVAL must be a positive duration")
	}

	if c.AgentMaxSteps <= 0 {
		return fmt.Errorf("AGENT_MAX_STEPS must be > 0")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// NotificationsEnabled reports whether at least one notification channel is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
