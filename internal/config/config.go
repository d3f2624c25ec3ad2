package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "Donustur"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultPublicBaseURL   = "http://localhost:3000"
	defaultStorageDir      = "./data/storage"
	defaultMailFrom        = "no-reply@donustur.app"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultSignedURLTTL    = time.Hour
	defaultScanCooldown    = 5 * time.Minute
	defaultConfirmationTTL = 24 * time.Hour
	defaultLoginRateLimit  = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	devInsecureSigningKey  = "dev-insecure-secret"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	PublicBaseURL     string
	StorageDir        string
	StorageSigningKey string
	SignedURLTTL      time.Duration

	MailFrom          string
	SMTPAddr          string
	SMTPUsername      string
	SMTPPassword      string
	MailTemplatesFile string

	ScanCooldown        time.Duration
	ConfirmationCodeTTL time.Duration
	LoginRateLimit      int
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is loaded first when present; real
// environment variables always win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		Env:               getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RefreshSecret:     os.Getenv("REFRESH_SECRET"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", defaultPublicBaseURL), "/"),
		StorageDir:        getEnv("STORAGE_DIR", defaultStorageDir),
		StorageSigningKey: os.Getenv("STORAGE_SIGNING_KEY"),
		MailFrom:          getEnv("MAIL_FROM", defaultMailFrom),
		SMTPAddr:          os.Getenv("SMTP_ADDR"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		MailTemplatesFile: os.Getenv("MAIL_TEMPLATES_FILE"),
		LoginRateLimit:    defaultLoginRateLimit,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", defaultAccessTokenTTL, &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", defaultRefreshTokenTTL, &cfg.RefreshTokenTTL},
		{"SIGNED_URL_TTL", defaultSignedURLTTL, &cfg.SignedURLTTL},
		{"SCAN_COOLDOWN", defaultScanCooldown, &cfg.ScanCooldown},
		{"CONFIRMATION_CODE_TTL", defaultConfirmationTTL, &cfg.ConfirmationCodeTTL},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	if v := os.Getenv("LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
		}
		cfg.LoginRateLimit = n
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devInsecureSigningKey
		}
		if cfg.StorageSigningKey == "" {
			cfg.StorageSigningKey = devInsecureSigningKey
		}
	} else {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
		if cfg.StorageSigningKey == "" {
			return Config{}, fmt.Errorf("STORAGE_SIGNING_KEY must be set")
		}
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret + ":refresh"
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
