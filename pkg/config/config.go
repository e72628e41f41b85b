package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Payment    PaymentConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Events     EventsConfig
	Telemetry  TelemetryConfig
	Settlement SettlementConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how bearer tokens issued by the identity provider are verified.
type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaymentConfig configures the hosted checkout provider.
type PaymentConfig struct {
	ServerKey     string
	Production    bool
	Currency      string
	FinishURL     string
	SessionPrefix string
}

// RateLimitConfig bounds checkout and settlement traffic per caller.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	FailOpen          bool
}

// CacheConfig governs the tutor directory cache.
type CacheConfig struct {
	Enabled  bool
	TutorTTL time.Duration
}

// EventsConfig points the domain event publisher at a NATS server. Empty URL disables publishing.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRate  float64
}

// SettlementConfig tunes the background worker that processes gateway notifications.
type SettlementConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
		Leeway: parseDuration(v.GetString("JWT_LEEWAY"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Payment = PaymentConfig{
		ServerKey:     v.GetString("MIDTRANS_SERVER_KEY"),
		Production:    v.GetBool("MIDTRANS_PRODUCTION"),
		Currency:      strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
		FinishURL:     v.GetString("PAYMENT_FINISH_URL"),
		SessionPrefix: v.GetString("PAYMENT_SESSION_PREFIX"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:           v.GetBool("RATE_LIMIT_ENABLED"),
		RequestsPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		Burst:             v.GetInt("RATE_LIMIT_BURST"),
		FailOpen:          v.GetBool("RATE_LIMIT_FAIL_OPEN"),
	}

	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("ENABLE_TUTOR_CACHE"),
		TutorTTL: parseDuration(v.GetString("TUTOR_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		NATSURL:       v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("EVENTS_SUBJECT_PREFIX"),
	}

	sampleRate := v.GetFloat64("OTEL_SAMPLE_RATE")
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 0.1
	}
	cfg.Telemetry = TelemetryConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    v.GetBool("OTEL_INSECURE"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
		SampleRate:  sampleRate,
	}

	cfg.Settlement = SettlementConfig{
		Workers:    v.GetInt("SETTLEMENT_WORKERS"),
		MaxRetries: v.GetInt("SETTLEMENT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("SETTLEMENT_RETRY_DELAY"), 2*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutorhub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MIDTRANS_SERVER_KEY", "")
	v.SetDefault("MIDTRANS_PRODUCTION", false)
	v.SetDefault("PAYMENT_CURRENCY", "IDR")
	v.SetDefault("PAYMENT_FINISH_URL", "http://localhost:5173/dashboard/payment-success")
	v.SetDefault("PAYMENT_SESSION_PREFIX", "TUI")

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_FAIL_OPEN", true)

	v.SetDefault("ENABLE_TUTOR_CACHE", false)
	v.SetDefault("TUTOR_CACHE_TTL", "5m")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("EVENTS_SUBJECT_PREFIX", "tutorhub")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "tutorhub-api")
	v.SetDefault("OTEL_SAMPLE_RATE", 0.1)

	v.SetDefault("SETTLEMENT_WORKERS", 2)
	v.SetDefault("SETTLEMENT_MAX_RETRIES", 5)
	v.SetDefault("SETTLEMENT_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
