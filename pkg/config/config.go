// Package config loads server configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	// DatabaseURL empty selects the embedded SQLite database (lite mode).
	DatabaseURL string
	// CacheURL empty selects the in-process cache.
	CacheURL string

	DisposableListURL string
	GeocoderURL       string
	GeocoderKey       string
	VATRegistryURL    string

	OTPBaseURL    string
	OTPAccountSID string
	OTPAuthToken  string

	RetentionDays      int
	RateLimitCount     int
	RateLimitBurst     int
	WebhookMaxAttempts int

	// EncryptionKey is the decoded 32-byte key behind ENCRYPTION_KEY.
	// Nil when unset; HMAC credentials cannot be verified without it.
	EncryptionKey []byte

	JWTSecret     string
	SessionSecret string

	// RulesFile optionally points at a YAML rule pack loaded at boot.
	RulesFile string

	// Log archive backend for the retention sweep: "" | fs | s3 | gcs.
	ArchiveType       string
	ArchiveDir        string
	ArchiveS3Bucket   string
	ArchiveS3Region   string
	ArchiveS3Endpoint string
	ArchiveS3Prefix   string
	ArchiveGCSBucket  string
	ArchiveGCSPrefix  string

	// OTLPEndpoint empty disables telemetry export.
	OTLPEndpoint string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     envStr("PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		CacheURL:    os.Getenv("CACHE_URL"),

		DisposableListURL: envStr("DISPOSABLE_LIST_URL",
			"https://raw.githubusercontent.com/disposable/disposable-email-domains/master/domains.json"),
		GeocoderURL:    os.Getenv("GEOCODER_URL"),
		GeocoderKey:    os.Getenv("GEOCODER_KEY"),
		VATRegistryURL: os.Getenv("VAT_REGISTRY_URL"),

		OTPBaseURL:    os.Getenv("OTP_BASE_URL"),
		OTPAccountSID: os.Getenv("OTP_ACCOUNT_SID"),
		OTPAuthToken:  os.Getenv("OTP_AUTH_TOKEN"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		RulesFile: os.Getenv("RULES_FILE"),

		ArchiveType:       os.Getenv("LOG_ARCHIVE_TYPE"),
		ArchiveDir:        envStr("LOG_ARCHIVE_DIR", "./archive"),
		ArchiveS3Bucket:   os.Getenv("LOG_ARCHIVE_S3_BUCKET"),
		ArchiveS3Region:   os.Getenv("LOG_ARCHIVE_S3_REGION"),
		ArchiveS3Endpoint: os.Getenv("LOG_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Prefix:   os.Getenv("LOG_ARCHIVE_S3_PREFIX"),
		ArchiveGCSBucket:  os.Getenv("LOG_ARCHIVE_GCS_BUCKET"),
		ArchiveGCSPrefix:  os.Getenv("LOG_ARCHIVE_GCS_PREFIX"),

		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}

	var err error
	if cfg.RetentionDays, err = envInt("RETENTION_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.RateLimitCount, err = envInt("RATE_LIMIT_COUNT", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 0); err != nil {
		return nil, err
	}
	if cfg.WebhookMaxAttempts, err = envInt("WEBHOOK_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}

	if raw := os.Getenv("ENCRYPTION_KEY"); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("config: ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("config: ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.EncryptionKey = key
	}

	return cfg, nil
}

// LiteMode reports whether the server runs on the embedded database.
func (c *Config) LiteMode() bool {
	return c.DatabaseURL == ""
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}
