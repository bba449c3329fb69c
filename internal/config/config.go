package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
)

// Config / tuning - defaults
const (
	DefaultFirebaseCredentialsFile   = "firebase-adminsdk.json"
	DefaultHTTPPort                  = "8080"
	DefaultPushRateLimit             = 50
	DefaultFanoutConcurrency         = 8
	DefaultMetricsLogIntervalSeconds = 60
	DefaultSmtpPort                  = "587"
	DefaultSmtpPoolSize              = 2
	DefaultGeminiModel               = "gemini-1.5-flash"
	DefaultAppBaseURL                = "https://rapid-works.io"
)

// Config is built once at startup and passed to every component that needs it.
type Config struct {
	WorkerID string

	FirebaseProjectID       string
	FirebaseCredentialsFile string

	HTTPPort                  string
	PushRateLimit             int
	FanoutConcurrency         int
	MetricsLogIntervalSeconds int
	AppBaseURL                string

	Smtp     SmtpConfig
	Airtable AirtableConfig

	TeamsWebhookURL string

	GeminiAPIKey string
	GeminiModel  string

	LogLevel  string
	LogFormat string
}

type SmtpConfig struct {
	From     string
	Password string
	Host     string
	Port     string
	PoolSize int
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (s SmtpConfig) Enabled() bool {
	return s.From != "" && s.Password != "" && s.Host != ""
}

type AirtableConfig struct {
	APIKey  string
	BaseID  string
	BaseURL string

	// Table names per relayed form kind
	TaskTable       string
	ServiceTable    string
	WebinarTable    string
	PartnerTable    string
	ExpertTable     string
	NewsletterTable string
}

// Enabled reports whether the Airtable relay has credentials.
func (a AirtableConfig) Enabled() bool {
	return a.APIKey != "" && a.BaseID != ""
}

// ErrMissingProjectID is returned by Load when FIREBASE_PROJECT_ID is empty.
var ErrMissingProjectID = errors.New("FIREBASE_PROJECT_ID environment variable is required")

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an integer environment variable or returns a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logging.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer value, using default")
	}
	return defaultValue
}

// GetEnvBool retrieves a boolean environment variable or returns a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
		logging.Warn().Str("key", key).Bool("default", defaultValue).Msg("invalid boolean value, using default")
	}
	return defaultValue
}

// Load reads the optional .env file and builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.Info().Msg(".env file not found, using environment variables or defaults")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{
		WorkerID: fmt.Sprintf("%s-%d", uuid.New().String(), os.Getpid()),

		FirebaseProjectID:       GetEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: GetEnv("FIREBASE_CREDENTIALS_FILE", DefaultFirebaseCredentialsFile),

		HTTPPort:                  GetEnv("HTTP_PORT", DefaultHTTPPort),
		PushRateLimit:             GetEnvInt("PUSH_RATE_LIMIT", DefaultPushRateLimit),
		FanoutConcurrency:         GetEnvInt("FANOUT_CONCURRENCY", DefaultFanoutConcurrency),
		MetricsLogIntervalSeconds: GetEnvInt("METRICS_LOG_INTERVAL_SECONDS", DefaultMetricsLogIntervalSeconds),
		AppBaseURL:                strings.TrimRight(GetEnv("APP_BASE_URL", DefaultAppBaseURL), "/"),

		Smtp: SmtpConfig{
			From:     GetEnv("SMTP_FROM", ""),
			Password: GetEnv("SMTP_PASSWORD", ""),
			Host:     GetEnv("SMTP_HOST", ""),
			Port:     GetEnv("SMTP_PORT", DefaultSmtpPort),
			PoolSize: GetEnvInt("SMTP_POOL_SIZE", DefaultSmtpPoolSize),
		},

		Airtable: AirtableConfig{
			APIKey:          GetEnv("AIRTABLE_API_KEY", ""),
			BaseID:          GetEnv("AIRTABLE_BASE_ID", ""),
			BaseURL:         GetEnv("AIRTABLE_BASE_URL", "https://api.airtable.com"),
			TaskTable:       GetEnv("AIRTABLE_TASK_TABLE", "Task Requests"),
			ServiceTable:    GetEnv("AIRTABLE_SERVICE_TABLE", "Service Requests"),
			WebinarTable:    GetEnv("AIRTABLE_WEBINAR_TABLE", "Webinar Registrations"),
			PartnerTable:    GetEnv("AIRTABLE_PARTNER_TABLE", "Partner Applications"),
			ExpertTable:     GetEnv("AIRTABLE_EXPERT_TABLE", "Expert Applications"),
			NewsletterTable: GetEnv("AIRTABLE_NEWSLETTER_TABLE", "Newsletter"),
		},

		TeamsWebhookURL: GetEnv("TEAMS_WEBHOOK_URL", ""),

		GeminiAPIKey: GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:  GetEnv("GEMINI_MODEL", DefaultGeminiModel),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),
	}

	if cfg.FirebaseProjectID == "" {
		return nil, ErrMissingProjectID
	}
	if cfg.PushRateLimit <= 0 {
		cfg.PushRateLimit = DefaultPushRateLimit
	}
	if cfg.FanoutConcurrency <= 0 {
		cfg.FanoutConcurrency = DefaultFanoutConcurrency
	}
	if cfg.MetricsLogIntervalSeconds <= 0 {
		cfg.MetricsLogIntervalSeconds = DefaultMetricsLogIntervalSeconds
	}
	if !cfg.Smtp.Enabled() {
		logging.Warn().Msg("email configuration incomplete, email notifications disabled")
	}

	return cfg, nil
}
