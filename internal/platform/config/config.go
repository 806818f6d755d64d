package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSecretKey is accepted only when ENVIRONMENT is development.
const DefaultSecretKey = "miriesgo-dev-secret-change-me"

// Config is built once at startup and passed explicitly to constructors.
type Config struct {
	Environment string
	Debug       bool
	LogLevel    string

	Server   Server
	Database Database
	Auth     Auth
	Scoring  Scoring
	Upload   Upload
	Events   Events
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	CORSAllowedOrigins []string
	TrustProxy         bool
	ShutdownTimeout    time.Duration
}

type Database struct {
	URL          string
	MaxOpenConns int
	RedisURL     string
}

type Auth struct {
	SecretKey          string
	Issuer             string
	Audience           string
	TokenTTL           time.Duration
	LoginRatePerMinute int
	MaxFailedAttempts  int
	LockoutDuration    time.Duration
}

type Scoring struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Events configures the optional audit stream. Empty KafkaBrokers disables it.
type Events struct {
	KafkaBrokers string
	AuditTopic   string
}

type Upload struct {
	Workers   int
	QueueSize int
	MaxBytes  int64
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// FromEnv loads .env (when present) and builds a Config from environment
// variables. Malformed numeric values are reported instead of silently
// falling back.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	p := &parser{}
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Debug:       p.bool("DEBUG", false),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: Server{
			Addr:               getEnv("MIRIESGO_ADDR", ":8000"),
			CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
			TrustProxy:         p.bool("TRUST_PROXY", false),
			ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: Database{
			URL:          databaseURL(),
			MaxOpenConns: p.int("DB_MAX_OPEN_CONNS", 25),
			RedisURL:     os.Getenv("REDIS_URL"),
		},
		Auth: Auth{
			SecretKey:          getEnv("SECRET_KEY", DefaultSecretKey),
			Issuer:             getEnv("JWT_ISSUER", "miriesgo"),
			Audience:           getEnv("JWT_AUDIENCE", "miriesgo-api"),
			TokenTTL:           time.Duration(p.int("ACCESS_TOKEN_EXPIRE_MINUTES", 480)) * time.Minute,
			LoginRatePerMinute: p.int("LOGIN_RATE_PER_MINUTE", 10),
			MaxFailedAttempts:  5,
			LockoutDuration:    30 * time.Minute,
		},
		Scoring: Scoring{
			APIKey:  os.Getenv("API_KEY"),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Timeout: p.duration("SCORING_TIMEOUT", 20*time.Second),
		},
		Upload: Upload{
			Workers:   p.int("UPLOAD_WORKERS", 4),
			QueueSize: p.int("UPLOAD_QUEUE_SIZE", 32),
			MaxBytes:  int64(p.int("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Events: Events{
			KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
			AuditTopic:   getEnv("KAFKA_AUDIT_TOPIC", "miriesgo.audit"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate rejects configurations that must never reach production.
func (c *Config) Validate() error {
	var errs []error
	if !c.IsDevelopment() && c.Auth.SecretKey == DefaultSecretKey {
		errs = append(errs, errors.New("SECRET_KEY must be set outside development"))
	}
	if len(c.Auth.SecretKey) < 16 {
		errs = append(errs, errors.New("SECRET_KEY must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Upload.Workers < 1 || c.Upload.QueueSize < 1 {
		errs = append(errs, errors.New("UPLOAD_WORKERS and UPLOAD_QUEUE_SIZE must be positive"))
	}
	if c.Upload.MaxBytes < 1 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Scoring.Timeout <= 0 {
		errs = append(errs, errors.New("SCORING_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// discrete DB_* variables. Empty when neither is configured, which selects
// in-memory stores.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("DB_USER", "miriesgo"), os.Getenv("DB_PASSWORD")),
		Host:     host + ":" + getEnv("DB_PORT", "5432"),
		Path:     "/" + getEnv("DB_NAME", "miriesgo"),
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser remembers the first malformed variable.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

// duration accepts Go durations ("20s") or a bare number of seconds.
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
