package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Diagnostics provider (pincode, slots, orders, summaries)
	ThyrocareBaseURL       string
	ThyrocareOrderBaseURL  string
	ThyrocareAPIKey        string
	ThyrocarePincodeAPIKey string
	UpstreamTimeout        time.Duration

	PincodeFailurePolicy string
	PincodeCacheTTL      time.Duration
	AddressMinLength     int
	OrderSource          string
	SessionTTL           time.Duration

	// Spreadsheet logging
	SheetsWebhookURL            string
	GoogleSheetsSpreadsheetID   string
	GoogleSheetsCredentialsFile string

	// Error email
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	ErrorEmailTo   string

	// Side-effect queue
	UseMemoryQueue     bool
	TaskQueueURL       string
	TaskWorkerCount    int
	TaskMaxAttempts    int
	TaskRetryBaseDelay time.Duration
	DeadLetterTable    string

	ArchiveBucket string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	apiKey := getEnv("THYROCARE_API_KEY", "")
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ThyrocareBaseURL:       strings.TrimRight(getEnv("THYROCARE_BASE_URL", "https://velso.thyrocare.cloud"), "/"),
		ThyrocareOrderBaseURL:  strings.TrimRight(getEnv("THYROCARE_ORDER_BASE_URL", "https://dx-dsa-service.thyrocare.com"), "/"),
		ThyrocareAPIKey:        apiKey,
		ThyrocarePincodeAPIKey: getEnv("THYROCARE_PINCODE_API_KEY", apiKey),
		UpstreamTimeout:        getEnvAsDuration("UPSTREAM_TIMEOUT", 15*time.Second),

		PincodeFailurePolicy: strings.ToLower(strings.TrimSpace(getEnv("PINCODE_FAILURE_POLICY", "open"))),
		PincodeCacheTTL:      getEnvAsDuration("PINCODE_CACHE_TTL", 6*time.Hour),
		AddressMinLength:     getEnvAsInt("ADDRESS_MIN_LENGTH", 25),
		OrderSource:          getEnv("ORDER_SOURCE", "landing-page"),
		SessionTTL:           getEnvAsDuration("SESSION_TTL", 2*time.Hour),

		SheetsWebhookURL:            getEnv("SHEETS_WEBHOOK_URL", ""),
		GoogleSheetsSpreadsheetID:   getEnv("GOOGLE_SHEETS_SPREADSHEET_ID", ""),
		GoogleSheetsCredentialsFile: getEnv("GOOGLE_SHEETS_CREDENTIALS_FILE", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Booking Desk"),
		ErrorEmailTo:   getEnv("ERROR_EMAIL_TO", ""),

		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", true),
		TaskQueueURL:       getEnv("TASK_QUEUE_URL", ""),
		TaskWorkerCount:    getEnvAsInt("TASK_WORKER_COUNT", 2),
		TaskMaxAttempts:    getEnvAsInt("TASK_MAX_ATTEMPTS", 5),
		TaskRetryBaseDelay: getEnvAsDuration("TASK_RETRY_BASE_DELAY", 30*time.Second),
		DeadLetterTable:    getEnv("DEAD_LETTER_TABLE", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
