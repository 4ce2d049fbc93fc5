package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bound is an optional lower/upper ratio bound for one fraud metric.
// A nil side means that side is not evaluated.
type Bound struct {
	Lower *float64
	Upper *float64
}

// Config holds all configuration for the application. It is loaded once at
// startup and passed explicitly; nothing in the pipeline reads ambient state.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env
	AppName string
	Debug   bool

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Service API
	ServiceApiPort  string
	ServiceApiToken string

	// Batch processing
	ProcessingEnabled bool
	BatchSize         int
	ProcessInterval   time.Duration

	// Email (SMTP)
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// Fraud alerting
	AlertsEnabled      bool
	AlertRecipients    []string
	AlertSubjectPrefix string
	AlertThrottle      time.Duration
	AlertMinSignatures int
	// FraudBounds maps a metric category name to its configured ratio
	// bounds. Categories without an entry are not evaluated.
	FraudBounds map[string]Bound

	// Operator (tamper) alert rate limiting
	OpsAlertRecipients []string
	OpsAlertPerMinute  int
	OpsAlertBurst      int

	// Identity enrichment
	ProfileEnrichment bool
	GeoIPDBPath       string
}

// fraudCategories are the metric categories that accept configured bounds.
// The env var names derive from these: FRAUD_FREE_EMAIL_UPPER etc.
var fraudCategories = []string{
	"free_email",
	"open_email",
	"forwarding_email",
	"timebound_email",
	"shredder_email",
	"subaddressed_email",
	"unique_ip",
}

// Load reads configuration from the environment. RunMode comes from
// command-line flags and is passed in.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	var err error

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "petitions")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.AppName = getEnv("APP_NAME", "petitions")
	cfg.Debug = getEnv("DEBUG", "false") == "true"
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.ServiceApiToken = getEnv("SERVICE_API_TOKEN", "")

	cfg.ProcessingEnabled = getEnv("SIGNATURES_PROCESSING_ENABLED", "true") == "true"
	cfg.BatchSize, err = strconv.Atoi(getEnv("SIGNATURES_BATCH_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNATURES_BATCH_SIZE: %w", err)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("SIGNATURES_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}

	processIntervalSeconds, err := strconv.ParseInt(getEnv("PROCESS_INTERVAL_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESS_INTERVAL_SECONDS: %w", err)
	}
	cfg.ProcessInterval = time.Duration(processIntervalSeconds) * time.Second

	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@petitions.example.com")
	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.AlertsEnabled = getEnv("FRAUD_ALERTS_ENABLED", "false") == "true"
	cfg.AlertRecipients = splitList(getEnv("FRAUD_ALERT_RECIPIENTS", ""))
	cfg.AlertSubjectPrefix = getEnv("FRAUD_ALERT_SUBJECT_PREFIX", "[petitions]")

	throttleSeconds, err := strconv.ParseInt(getEnv("FRAUD_ALERT_THROTTLE_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FRAUD_ALERT_THROTTLE_SECONDS: %w", err)
	}
	cfg.AlertThrottle = time.Duration(throttleSeconds) * time.Second

	cfg.AlertMinSignatures, err = strconv.Atoi(getEnv("FRAUD_ALERT_MIN_SIGNATURES", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRAUD_ALERT_MIN_SIGNATURES: %w", err)
	}

	cfg.FraudBounds = make(map[string]Bound)
	for _, cat := range fraudCategories {
		prefix := "FRAUD_" + strings.ToUpper(cat)
		var bound Bound
		if raw, exists := os.LookupEnv(prefix + "_LOWER"); exists {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s_LOWER: %w", prefix, err)
			}
			bound.Lower = &v
		}
		if raw, exists := os.LookupEnv(prefix + "_UPPER"); exists {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s_UPPER: %w", prefix, err)
			}
			bound.Upper = &v
		}
		if bound.Lower != nil || bound.Upper != nil {
			cfg.FraudBounds[cat] = bound
		}
	}

	cfg.OpsAlertRecipients = splitList(getEnv("OPS_ALERT_RECIPIENTS", ""))
	if len(cfg.OpsAlertRecipients) == 0 {
		cfg.OpsAlertRecipients = cfg.AlertRecipients
	}
	cfg.OpsAlertPerMinute, err = strconv.Atoi(getEnv("OPS_ALERT_PER_MINUTE", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPS_ALERT_PER_MINUTE: %w", err)
	}
	cfg.OpsAlertBurst, err = strconv.Atoi(getEnv("OPS_ALERT_BURST", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPS_ALERT_BURST: %w", err)
	}

	cfg.ProfileEnrichment = getEnv("PROFILE_ENRICHMENT", "true") == "true"
	cfg.GeoIPDBPath = getEnv("GEOIP_DB_PATH", "")

	return cfg, nil
}

// AlertingConfigured reports whether the threshold evaluator has everything
// it needs: the enable flag, a throttle interval and a minimum-signature
// threshold. Without all three the evaluator stays inactive.
func (c *Config) AlertingConfigured() bool {
	return c.AlertsEnabled && c.AlertThrottle > 0 && c.AlertMinSignatures > 0 &&
		len(c.AlertRecipients) > 0
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
