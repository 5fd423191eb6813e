package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	Redis         RedisConfig
	Kafka         KafkaConfig
	Policy        PolicyConfig
	Limits        LimitsConfig
	Dispatch      DispatchConfig
	AuditDB       string // Postgres DSN; empty disables the DB sink
	ClassifierURL string // entity classifier endpoint; empty disables PII classification
}

// RedisConfig holds connection settings for the shared counter store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the audit sink broker settings.
type KafkaConfig struct {
	Seeds []string
	Topic string
}

// PolicyConfig holds decision oracle settings. Evaluation is fail-closed, so
// a short timeout bounds how long a broken oracle can stall requests.
type PolicyConfig struct {
	URL     string
	Timeout time.Duration
}

// LimitsConfig holds the default fixed-window quotas.
type LimitsConfig struct {
	UserPerMinute    int64
	TenantPerHour    int64
	UserTokensPerDay int64
}

// DispatchConfig holds downstream routing settings.
type DispatchConfig struct {
	DefaultTarget  string
	FallbackTarget string
	Timeout        time.Duration
	UpstreamURL    string
	UpstreamAPIKey string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envOr("BULWARK_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 2*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Seeds: splitNonEmpty(os.Getenv("KAFKA_SEEDS")),
			Topic: envOr("AUDIT_TOPIC", "bulwark.audit"),
		},
		Policy: PolicyConfig{
			URL:     envOr("POLICY_URL", "http://localhost:8181"),
			Timeout: envDuration("POLICY_TIMEOUT", 5*time.Second),
		},
		Limits: LimitsConfig{
			UserPerMinute:    int64(envInt("LIMIT_USER_PER_MINUTE", 100)),
			TenantPerHour:    int64(envInt("LIMIT_TENANT_PER_HOUR", 10000)),
			UserTokensPerDay: int64(envInt("LIMIT_USER_TOKENS_PER_DAY", 100000)),
		},
		Dispatch: DispatchConfig{
			DefaultTarget:  envOr("DISPATCH_DEFAULT_TARGET", "claude-3-sonnet"),
			FallbackTarget: envOr("DISPATCH_FALLBACK_TARGET", "gpt-3.5-turbo"),
			Timeout:        envDuration("DISPATCH_TIMEOUT", 60*time.Second),
			UpstreamURL:    os.Getenv("UPSTREAM_URL"),
			UpstreamAPIKey: os.Getenv("UPSTREAM_API_KEY"),
		},
		AuditDB:       os.Getenv("AUDIT_DB_DSN"),
		ClassifierURL: os.Getenv("CLASSIFIER_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
